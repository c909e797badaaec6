// Package deepgram provides a speech-input adapter over Deepgram's live
// transcription socket. The head unit's microphone bus feeds audio frames in
// through SendAudio; final transcriptions and wake-word detections come out
// through the orchestrator-facing contract.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/lukamarin/cabin-core/core/speechinput"
)

const keepAliveInterval = 5 * time.Second

// TranscriptionClient is a live Deepgram listen session. It satisfies the
// orchestrator's speech-input contract: lifecycle, health, wake-word
// polling, and transcription delivery.
type TranscriptionClient struct {
	options speechinput.Options

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time

	handlerMu sync.RWMutex
	handler   func(transcript string, confidence float64)

	wakeDetected atomic.Bool

	// accumulated transcript segments for the utterance in flight. Only the
	// read loop touches these.
	accumulatedTranscript string
	segmentConfidences    []float64

	readCancel context.CancelFunc
}

func NewTranscriptionClient(opts ...speechinput.Option) *TranscriptionClient {
	options := speechinput.DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &TranscriptionClient{options: options}
}

// SetTranscriptionHandler registers the consumer for final transcriptions.
func (s *TranscriptionClient) SetTranscriptionHandler(handler func(transcript string, confidence float64)) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// IsWakeWordDetected reports, and clears, a pending wake-word detection.
func (s *TranscriptionClient) IsWakeWordDetected(ctx context.Context) bool {
	return s.wakeDetected.Swap(false)
}

func (s *TranscriptionClient) Start(ctx context.Context) error {
	conn, err := connectWebsocket(s.options)
	if err != nil {
		return fmt.Errorf("failed to open listen socket: %w", err)
	}

	readCtx, readCancel := context.WithCancel(context.WithoutCancel(ctx))

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Now()
	s.readCancel = readCancel
	s.connMu.Unlock()

	go s.readAndProcessMessages(readCtx, conn)
	go s.keepAlive(readCtx)

	return nil
}

func (s *TranscriptionClient) Stop(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.readCancel != nil {
		s.readCancel()
		s.readCancel = nil
	}
	if s.conn == nil {
		return nil
	}

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		log.Println("Failed to close deepgram stream cleanly", "error", err)
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close listen socket: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		log.Println("Failed to stop transcription client during restart", "error", err)
	}
	return s.Start(ctx)
}

// HealthCheck reports whether the listen socket is up.
func (s *TranscriptionClient) HealthCheck(ctx context.Context) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

// SendAudio forwards one audio frame from the microphone bus.
func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("listen socket is not open")
	}

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func connectWebsocket(options speechinput.Options) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.Encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", options.Model)
	queryParams.Set("language", options.Language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			idle := time.Since(s.lastMsgTs) >= keepAliveInterval
			conn := s.conn
			if idle && conn != nil {
				if err := conn.WriteJSON(struct {
					Type string `json:"type"`
				}{Type: "KeepAlive"}); err != nil {
					log.Println("Failed to write keepalive to deepgram client", "error", err)
				}
			}
			s.connMu.Unlock()
		}
	}
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" && ctx.Err() == nil {
				log.Println("Failed to read deepgram websocket message", "error", err)
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg)
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		alternative := msgResp.Channel.Alternatives[0]
		transcript := strings.TrimSpace(alternative.Transcript)
		if len(transcript) > 0 {
			if s.matchesWakeWord(transcript) {
				s.wakeDetected.Store(true)
			}
			s.accumulatedTranscript += " " + transcript
			s.segmentConfidences = append(s.segmentConfidences, alternative.Confidence)
		}
		if msgResp.SpeechFinal {
			s.deliverUtterance()
		}

	case api.TypeUtteranceEndResponse:
		s.deliverUtterance()
	}
}

func (s *TranscriptionClient) matchesWakeWord(transcript string) bool {
	normalized := strings.ToLower(strings.TrimFunc(transcript, func(r rune) bool {
		return r == '.' || r == ',' || r == '!' || r == '?'
	}))
	return strings.Contains(normalized, s.options.WakeWord)
}

// deliverUtterance hands the accumulated utterance to the registered
// handler with the mean confidence of its final segments.
func (s *TranscriptionClient) deliverUtterance() {
	transcript := strings.TrimSpace(s.accumulatedTranscript)
	confidences := s.segmentConfidences
	s.accumulatedTranscript = ""
	s.segmentConfidences = nil

	if len(transcript) == 0 {
		return
	}

	confidence := 0.0
	for _, segment := range confidences {
		confidence += segment
	}
	if len(confidences) > 0 {
		confidence /= float64(len(confidences))
	}

	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(transcript, confidence)
	}
}
