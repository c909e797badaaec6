package orchestration

import "github.com/lukamarin/cabin-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts RunOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.StateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(SessionState(typedEvent.State))
			}
		case events.TranscriptionReceived:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript, typedEvent.Confidence)
			}
		case events.ResponseGenerated:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Response)
			}
		case events.CommandExecuted:
			if opts.onCommandExecuted != nil {
				opts.onCommandExecuted(typedEvent.Command, typedEvent.Err)
			}
		case events.ProactiveNotification:
			if opts.onProactiveNotification != nil {
				opts.onProactiveNotification(typedEvent.EventType, typedEvent.Speech)
			}
		}
	}
}
