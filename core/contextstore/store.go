// Package contextstore holds the shared conversation context: history,
// extracted entities, vehicle state, user preferences. The store is the only
// piece of state shared across every orchestration component, so all access
// goes through it and mutations are serialized.
package contextstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

// ErrSchemaMismatch is returned when an update payload's shape is
// incompatible with the stored context, e.g. merging a scalar into a field
// that holds a mapping. The prior state is retained untouched.
var ErrSchemaMismatch = errors.New("context update incompatible with schema")

const (
	DefaultHistoryWindow = 5
	DefaultTTL           = 30 * time.Minute
)

// Turn is one exchange unit appended to conversation history. Turns are
// immutable once appended.
type Turn struct {
	Timestamp time.Time      `json:"timestamp"`
	Speaker   string         `json:"speaker"`
	Text      string         `json:"text"`
	Intent    string         `json:"intent,omitempty"`
	Entities  map[string]any `json:"entities,omitempty"`
}

// ConversationContext is a point-in-time snapshot of the shared context.
// Values handed out by [Store.Read] are deep copies; callers never observe a
// partially-applied update and cannot mutate the stored state through them.
type ConversationContext struct {
	History         []Turn         `json:"conversation_history"`
	CurrentIntent   string         `json:"current_intent,omitempty"`
	Entities        map[string]any `json:"entities"`
	VehicleState    map[string]any `json:"vehicle_state"`
	UserPreferences map[string]any `json:"user_preferences"`
	LastUpdate      time.Time      `json:"last_update"`
}

// Update is a partial context mutation. Nil maps and nil pointers leave the
// corresponding field untouched; non-nil maps deep-merge into the stored
// mappings (nested mappings merge recursively, scalars replace).
type Update struct {
	CurrentIntent   *string
	Entities        map[string]any
	VehicleState    map[string]any
	UserPreferences map[string]any
}

// Summary is a compact view of the context used for telemetry payloads.
type Summary struct {
	CurrentIntent   string `json:"current_intent,omitempty"`
	TurnCount       int    `json:"turn_count"`
	EntityCount     int    `json:"entity_count"`
	PreferenceCount int    `json:"preference_count"`
}

type Option func(*Store)

// WithHistoryWindow bounds conversation history to the last n turns.
func WithHistoryWindow(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTTL sets the idle duration after which the context resets to defaults.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Used by tests to drive TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns the conversation context. At most one mutation is in flight at
// a time; reads return deep-copied snapshots taken under the same exclusion
// so a read never observes a concurrently expiring reset half-applied.
type Store struct {
	mu sync.Mutex

	context ConversationContext
	window  int
	ttl     time.Duration
	now     func() time.Time
}

func New(opts ...Option) *Store {
	s := &Store{
		window: DefaultHistoryWindow,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.context = defaultContext(s.now())
	return s
}

func defaultContext(now time.Time) ConversationContext {
	return ConversationContext{
		History:         []Turn{},
		Entities:        map[string]any{},
		VehicleState:    map[string]any{},
		UserPreferences: map[string]any{},
		LastUpdate:      now,
	}
}

// Read returns a consistent snapshot of the context. An unmodified context
// older than the configured TTL is reset to defaults before the snapshot is
// taken.
func (s *Store) Read() ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return s.snapshotLocked()
}

// Update deep-merges the partial update into the stored context and
// refreshes the last-update timestamp. On [ErrSchemaMismatch] the prior
// state is retained untouched.
func (s *Store) Update(update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	// Merge into deep copies first so a mid-merge mismatch leaves the
	// stored maps untouched.
	entities, err := mergedCopy(s.context.Entities, update.Entities)
	if err != nil {
		return fmt.Errorf("entities: %w", err)
	}
	vehicleState, err := mergedCopy(s.context.VehicleState, update.VehicleState)
	if err != nil {
		return fmt.Errorf("vehicle state: %w", err)
	}
	preferences, err := mergedCopy(s.context.UserPreferences, update.UserPreferences)
	if err != nil {
		return fmt.Errorf("user preferences: %w", err)
	}

	s.context.Entities = entities
	s.context.VehicleState = vehicleState
	s.context.UserPreferences = preferences
	if update.CurrentIntent != nil {
		s.context.CurrentIntent = *update.CurrentIntent
	}
	s.context.LastUpdate = s.now()
	return nil
}

// AppendTurn appends a turn to conversation history and truncates the
// history to the configured window.
func (s *Store) AppendTurn(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	s.context.History = append(s.context.History, turn)
	if len(s.context.History) > s.window {
		s.context.History = append([]Turn(nil), s.context.History[len(s.context.History)-s.window:]...)
	}
	s.context.LastUpdate = s.now()
}

// Reset discards the context and restores defaults.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.context = defaultContext(s.now())
}

// Summary returns a compact context view for telemetry payloads.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	return Summary{
		CurrentIntent:   s.context.CurrentIntent,
		TurnCount:       len(s.context.History),
		EntityCount:     len(s.context.Entities),
		PreferenceCount: len(s.context.UserPreferences),
	}
}

func (s *Store) expireLocked() {
	if s.now().Sub(s.context.LastUpdate) > s.ttl {
		s.context = defaultContext(s.now())
	}
}

func (s *Store) snapshotLocked() ConversationContext {
	snapshot := ConversationContext{}
	if err := copier.CopyWithOption(&snapshot, &s.context, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on invalid destinations; fall back to a
		// shallow header copy rather than handing out aliased maps.
		snapshot = s.context
		snapshot.Entities = map[string]any{}
		snapshot.VehicleState = map[string]any{}
		snapshot.UserPreferences = map[string]any{}
	}
	if snapshot.History == nil {
		snapshot.History = []Turn{}
	}
	if snapshot.Entities == nil {
		snapshot.Entities = map[string]any{}
	}
	if snapshot.VehicleState == nil {
		snapshot.VehicleState = map[string]any{}
	}
	if snapshot.UserPreferences == nil {
		snapshot.UserPreferences = map[string]any{}
	}
	return snapshot
}

func mergedCopy(dst, src map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if err := copier.CopyWithOption(&out, &dst, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy context field: %w", err)
	}
	if err := deepMerge(out, src); err != nil {
		return nil, err
	}
	return out, nil
}

func deepMerge(dst, src map[string]any) error {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}

		existingMap, existingIsMap := existing.(map[string]any)
		valueMap, valueIsMap := value.(map[string]any)
		switch {
		case existingIsMap && valueIsMap:
			if err := deepMerge(existingMap, valueMap); err != nil {
				return err
			}
		case existingIsMap && !valueIsMap:
			return fmt.Errorf("%w: field %q holds a mapping, update carries %T", ErrSchemaMismatch, key, value)
		case !existingIsMap && valueIsMap:
			return fmt.Errorf("%w: field %q holds a scalar, update carries a mapping", ErrSchemaMismatch, key)
		default:
			dst[key] = value
		}
	}
	return nil
}
