package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Component names as used in health reports and telemetry payloads.
const (
	ComponentSpeechInput   = "speech_input"
	ComponentUnderstanding = "understanding"
	ComponentDialogue      = "dialogue"
	ComponentSpeechOutput  = "speech_output"
	ComponentVehicleLink   = "vehicle_link"
	ComponentTelemetry     = "telemetry"
)

type namedComponent struct {
	name string
	Component
}

// componentSet tracks registered collaborators in startup order. Shutdown
// walks the same list in reverse.
type componentSet struct {
	components []namedComponent
}

func (s *componentSet) register(name string, component Component) {
	if component == nil {
		return
	}
	s.components = append(s.components, namedComponent{name: name, Component: component})
}

func (s *componentSet) names() []string {
	names := make([]string, 0, len(s.components))
	for _, component := range s.components {
		names = append(names, component.name)
	}
	return names
}

func (s *componentSet) byName(name string) (namedComponent, bool) {
	for _, component := range s.components {
		if component.name == name {
			return component, true
		}
	}
	return namedComponent{}, false
}

// startAll starts every registered component concurrently and joins their
// errors.
func (s *componentSet) startAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start components")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("components", s.names()))

	var startErr error
	startErrMu := sync.Mutex{}

	wg := &sync.WaitGroup{}
	for _, component := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := component.Start(ctx); err != nil {
				startErrMu.Lock()
				startErr = errors.Join(startErr, fmt.Errorf("failed to start %s: %w", component.name, err))
				startErrMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if startErr != nil {
		span.RecordError(startErr)
		span.SetStatus(codes.Error, startErr.Error())
	}
	return startErr
}

// stopAll stops components in strict reverse-of-start order. Every stop is
// attempted even when earlier ones fail.
func (s *componentSet) stopAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stop components")
	defer span.End()

	var stopErr error
	for i := len(s.components) - 1; i >= 0; i-- {
		component := s.components[i]
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("failed to stop %s: %w", component.name, err))
		}
	}

	if stopErr != nil {
		span.RecordError(stopErr)
		span.SetStatus(codes.Error, stopErr.Error())
	}
	return stopErr
}
