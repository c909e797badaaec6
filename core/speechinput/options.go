// Package speechinput holds the shared configuration surface for
// speech-input adapters.
package speechinput

// Options configures a speech-input adapter.
type Options struct {
	// WakeWord is the phrase that moves the assistant out of idle.
	WakeWord string
	// Model names the provider's recognition model.
	Model string
	// Language is the recognition language tag.
	Language string
	// SampleRate of the audio frames the head unit delivers, in Hz.
	SampleRate int
	// Encoding of the audio frames, provider-specific name.
	Encoding string
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		WakeWord:   "hey assistant",
		Model:      "nova-3",
		Language:   "en-US",
		SampleRate: 16000,
		Encoding:   "linear16",
	}
}

func WithWakeWord(wakeWord string) Option {
	return func(o *Options) {
		if wakeWord != "" {
			o.WakeWord = wakeWord
		}
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithLanguage(language string) Option {
	return func(o *Options) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithSampleRate(sampleRate int) Option {
	return func(o *Options) {
		if sampleRate > 0 {
			o.SampleRate = sampleRate
		}
	}
}

func WithEncoding(encoding string) Option {
	return func(o *Options) {
		if encoding != "" {
			o.Encoding = encoding
		}
	}
}
