// Package wsbridge is a vehicle-link adapter speaking the head unit's
// JSON-frame websocket protocol. The head unit pushes state snapshots and
// vehicle events; the bridge sends UI updates and control commands and
// matches command acknowledgements by request id.
package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jinzhu/copier"
	"github.com/lukamarin/cabin-core/core/vehicle"
	"github.com/lukamarin/cabin-core/core/vehiclelink"
)

// frame is one websocket message in either direction.
//
// Outbound types: "ui_state", "ui_update", "command".
// Inbound types: "state", "event", "ack".
type frame struct {
	Type      string         `json:"type"`
	ID        string         `json:"id,omitempty"`
	Command   string         `json:"command,omitempty"`
	EventType string         `json:"event_type,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Bridge is a live connection to the head unit. It satisfies the
// orchestrator's vehicle-link contract.
type Bridge struct {
	options vehiclelink.Options

	connMu sync.Mutex
	conn   *websocket.Conn

	stateMu sync.RWMutex
	state   map[string]any

	handlerMu sync.RWMutex
	handler   func(eventType string, eventData map[string]any)

	pendingMu sync.Mutex
	pending   map[string]chan error

	readCancel context.CancelFunc
}

func New(opts ...vehiclelink.Option) *Bridge {
	options := vehiclelink.DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Bridge{
		options: options,
		state:   map[string]any{},
		pending: map[string]chan error{},
	}
}

// SubscribeToEvents registers the consumer for pushed vehicle events.
func (b *Bridge) SubscribeToEvents(handler func(eventType string, eventData map[string]any)) {
	b.handlerMu.Lock()
	b.handler = handler
	b.handlerMu.Unlock()
}

func (b *Bridge) Start(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.options.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to open bridge socket: %w", err)
	}

	readCtx, readCancel := context.WithCancel(context.WithoutCancel(ctx))

	b.connMu.Lock()
	b.conn = conn
	b.readCancel = readCancel
	b.connMu.Unlock()

	go b.readAndProcessFrames(readCtx, conn)

	return nil
}

func (b *Bridge) Stop(ctx context.Context) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.readCancel != nil {
		b.readCancel()
		b.readCancel = nil
	}
	if b.conn == nil {
		return nil
	}

	err := b.conn.Close()
	b.conn = nil
	b.failPending(fmt.Errorf("bridge closed"))
	if err != nil {
		return fmt.Errorf("failed to close bridge socket: %w", err)
	}
	return nil
}

func (b *Bridge) Restart(ctx context.Context) error {
	if err := b.Stop(ctx); err != nil {
		log.Println("Failed to stop bridge during restart", "error", err)
	}
	return b.Start(ctx)
}

// HealthCheck reports whether the bridge socket is up.
func (b *Bridge) HealthCheck(ctx context.Context) bool {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	return b.conn != nil
}

// CurrentState returns a copy of the most recently pushed vehicle state.
func (b *Bridge) CurrentState(ctx context.Context) (map[string]any, error) {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	state := map[string]any{}
	if err := copier.CopyWithOption(&state, b.state, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy vehicle state: %w", err)
	}
	return state, nil
}

func (b *Bridge) SetUIState(ctx context.Context, state vehicle.UIState) error {
	return b.writeFrame(frame{Type: "ui_state", Payload: map[string]any{"state": string(state)}})
}

func (b *Bridge) UpdateUI(ctx context.Context, update map[string]any) error {
	return b.writeFrame(frame{Type: "ui_update", Payload: update})
}

func (b *Bridge) SetClimate(ctx context.Context, params vehicle.ClimateControlParams) error {
	return b.sendCommand(ctx, vehicle.CommandClimateControl, params)
}

func (b *Bridge) SetNavigationDestination(ctx context.Context, params vehicle.NavigationParams) error {
	return b.sendCommand(ctx, vehicle.CommandNavigation, params)
}

func (b *Bridge) ControlMedia(ctx context.Context, params vehicle.MediaParams) error {
	return b.sendCommand(ctx, vehicle.CommandMedia, params)
}

func (b *Bridge) UpdateSettings(ctx context.Context, params vehicle.SettingsParams) error {
	return b.sendCommand(ctx, vehicle.CommandVehicleSettings, params)
}

// sendCommand writes one command frame and waits for the head unit's
// acknowledgement, bounded by the configured ack timeout.
func (b *Bridge) sendCommand(ctx context.Context, commandType string, params any) error {
	payload := map[string]any{}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode command parameters: %w", err)
	}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return fmt.Errorf("failed to encode command parameters: %w", err)
	}

	id := uuid.NewString()
	ack := make(chan error, 1)
	b.pendingMu.Lock()
	b.pending[id] = ack
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}()

	if err := b.writeFrame(frame{Type: "command", ID: id, Command: commandType, Payload: payload}); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-time.After(b.options.AckTimeout):
		return fmt.Errorf("timed out waiting for %s acknowledgement", commandType)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) writeFrame(f frame) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.conn == nil {
		return fmt.Errorf("bridge socket is not open")
	}
	if err := b.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write to bridge socket: %w", err)
	}
	return nil
}

func (b *Bridge) readAndProcessFrames(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Println("Failed to read bridge frame", "error", err)
			}

			b.connMu.Lock()
			if b.conn == conn {
				b.conn = nil
			}
			b.connMu.Unlock()
			conn.Close()
			b.failPending(fmt.Errorf("bridge connection lost"))
			return
		}
		b.processFrame(f)
	}
}

func (b *Bridge) processFrame(f frame) {
	switch f.Type {
	case "state":
		b.stateMu.Lock()
		b.state = f.Payload
		b.stateMu.Unlock()

	case "event":
		b.handlerMu.RLock()
		handler := b.handler
		b.handlerMu.RUnlock()
		if handler != nil && f.EventType != "" {
			handler(f.EventType, f.Payload)
		}

	case "ack":
		b.pendingMu.Lock()
		ack, ok := b.pending[f.ID]
		delete(b.pending, f.ID)
		b.pendingMu.Unlock()
		if !ok {
			return
		}
		if f.Error != "" {
			ack <- fmt.Errorf("head unit rejected command: %s", f.Error)
		} else {
			ack <- nil
		}

	default:
		log.Println("Ignoring unknown bridge frame type", f.Type)
	}
}

// failPending releases every command waiter with err. Called with the
// connection gone so no further acks can arrive.
func (b *Bridge) failPending(err error) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ack := range b.pending {
		ack <- err
		delete(b.pending, id)
	}
}
