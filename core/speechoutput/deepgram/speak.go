// Package deepgram provides a speech-output adapter over Deepgram's REST
// synthesis API. Synthesized audio is handed to the head unit's audio sink;
// the package does not drive audio hardware itself.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lukamarin/cabin-core/core/speechoutput"
	"github.com/muesli/reflow/wordwrap"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const speakURL = "https://api.deepgram.com/v1/speak"

// maxRequestChars bounds one synthesis request's text. Longer responses are
// wrapped into chunks at word boundaries and synthesized in order.
const maxRequestChars = 1900

// AudioSink receives synthesized audio for playback. interrupt asks the sink
// to cut off whatever it is currently playing first.
type AudioSink func(audio []byte, interrupt bool) error

// SpeakClient synthesizes spoken responses. It satisfies the orchestrator's
// speech-output contract.
type SpeakClient struct {
	options speechoutput.Options
	sink    AudioSink
	client  *http.Client

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func NewSpeakClient(sink AudioSink, opts ...speechoutput.Option) *SpeakClient {
	options := speechoutput.DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &SpeakClient{
		options: options,
		sink:    sink,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
}

func (c *SpeakClient) Start(ctx context.Context) error {
	if _, ok := os.LookupEnv("DEEPGRAM_API_KEY"); !ok {
		return fmt.Errorf("deepgram api key not found")
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *SpeakClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.started = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	return nil
}

func (c *SpeakClient) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	return c.Start(ctx)
}

func (c *SpeakClient) HealthCheck(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Speak synthesizes text and streams the result to the audio sink. With
// interrupt set, any synthesis still in flight is cancelled first and the
// sink is asked to cut off playback.
func (c *SpeakClient) Speak(ctx context.Context, text string, interrupt bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return fmt.Errorf("speak client is not started")
	}
	if interrupt && c.cancel != nil {
		c.cancel()
	}
	speakCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	for i, chunk := range chunkText(text) {
		audio, err := c.synthesize(speakCtx, chunk)
		if err != nil {
			return err
		}
		if err := c.sink(audio, interrupt && i == 0); err != nil {
			return fmt.Errorf("audio sink rejected synthesized speech: %w", err)
		}
	}

	return nil
}

func (c *SpeakClient) synthesize(ctx context.Context, text string) ([]byte, error) {
	requestBody, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	speakUrl, _ := url.Parse(speakURL)
	queryParams := speakUrl.Query()
	queryParams.Set("model", c.options.Voice)
	queryParams.Set("encoding", c.options.Encoding)
	queryParams.Set("sample_rate", strconv.Itoa(c.options.SampleRate))
	speakUrl.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", speakUrl.String(), bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+os.Getenv("DEEPGRAM_API_KEY"))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading synthesized audio: %w", err)
	}
	return audio, nil
}

// chunkText splits text into synthesis-sized pieces at word boundaries.
func chunkText(text string) []string {
	if len(text) <= maxRequestChars {
		return []string{text}
	}

	wrapped := wordwrap.String(text, maxRequestChars)
	chunks := []string{}
	for _, line := range strings.Split(wrapped, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
