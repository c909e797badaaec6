package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/lukamarin/cabin-core/core/events"
	"github.com/lukamarin/cabin-core/core/vehicle"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const commandQueueCapacity = 16

// CommandResult is the outcome of one executed vehicle command.
type CommandResult struct {
	Command vehicle.Command
	Err     error
}

type commandRequest struct {
	ctx     context.Context
	command vehicle.Command
	result  chan error
}

// commandQueue serializes vehicle command execution: many logical producers
// (dialogue turns, proactive triggers) enqueue concurrently, exactly one
// consumer executes in FIFO order. Each enqueue is delivered at most once.
type commandQueue struct {
	link *vehicleLinkFacade
	emit eventEmitter

	queue   chan commandRequest
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once
}

func newCommandQueue(link *vehicleLinkFacade) *commandQueue {
	return &commandQueue{
		link:    link,
		emit:    noopEventEmitter,
		queue:   make(chan commandRequest, commandQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (q *commandQueue) setEventEmitter(emit eventEmitter) {
	if q != nil && emit != nil {
		q.emit = emit
	}
}

func (q *commandQueue) start() {
	q.startOnce.Do(func() {
		go func() {
			defer close(q.done)

			for {
				select {
				case <-q.closeCh:
					return
				case request := <-q.queue:
					request.result <- q.execute(request.ctx, request.command)
				}
			}
		}()
	})
}

func (q *commandQueue) end() {
	q.endOnce.Do(func() {
		close(q.closeCh)
	})
}

func (q *commandQueue) awaitCompletion() {
	<-q.done
}

func (q *commandQueue) isClosed() bool {
	select {
	case <-q.closeCh:
		return true
	default:
		return false
	}
}

// executeAll enqueues the commands and waits for each result in order.
// Failures do not stop the batch; every command gets its attempt.
func (q *commandQueue) executeAll(ctx context.Context, commands []vehicle.Command) []CommandResult {
	results := make([]CommandResult, 0, len(commands))
	for _, command := range commands {
		results = append(results, CommandResult{Command: command, Err: q.executeOne(ctx, command)})
	}
	return results
}

func (q *commandQueue) executeOne(ctx context.Context, command vehicle.Command) error {
	request := commandRequest{ctx: ctx, command: command, result: make(chan error, 1)}

	select {
	case <-q.closeCh:
		return fmt.Errorf("command queue closed: %w", ErrNotRunning)
	case <-ctx.Done():
		return ctx.Err()
	case q.queue <- request:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-request.result:
		return err
	}
}

// execute decodes and routes one command to its vehicle-link executor.
// Malformed payloads are rejected before any vehicle call is made.
func (q *commandQueue) execute(ctx context.Context, command vehicle.Command) error {
	ctx, span := tracer.Start(ctx, "execute vehicle command")
	defer span.End()
	span.SetAttributes(attribute.String("command.type", command.Type))

	err := q.routeCommand(ctx, command)
	if err != nil {
		err = fmt.Errorf("failed to execute %s command: %w", command.Type, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	q.emit(events.NewCommandExecuted(command, err))
	return err
}

func (q *commandQueue) routeCommand(ctx context.Context, command vehicle.Command) error {
	params, err := vehicle.DecodeParameters(command)
	if err != nil {
		return err
	}

	switch {
	case params.Climate != nil:
		return q.link.SetClimate(ctx, *params.Climate)
	case params.Navigation != nil:
		return q.link.SetNavigationDestination(ctx, *params.Navigation)
	case params.Media != nil:
		return q.link.ControlMedia(ctx, *params.Media)
	case params.Settings != nil:
		return q.link.UpdateSettings(ctx, *params.Settings)
	default:
		return fmt.Errorf("%w: %q", vehicle.ErrUnknownCommandType, command.Type)
	}
}
