// Package speechoutput holds the shared configuration surface for
// speech-output adapters.
package speechoutput

// Options configures a speech-output adapter.
type Options struct {
	// Voice names the provider's synthesis voice/model.
	Voice string
	// Encoding of the synthesized audio, provider-specific name.
	Encoding string
	// SampleRate of the synthesized audio, in Hz.
	SampleRate int
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Voice:      "aura-2-thalia-en",
		Encoding:   "linear16",
		SampleRate: 24000,
	}
}

func WithVoice(voice string) Option {
	return func(o *Options) {
		if voice != "" {
			o.Voice = voice
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

func WithSampleRate(sampleRate int) Option {
	return func(o *Options) {
		if sampleRate > 0 {
			o.SampleRate = sampleRate
		}
	}
}
