// Package vehicle defines the command vocabulary the dialogue layer can
// issue against the vehicle, with reflected parameter schemas and strict
// payload decoding.
package vehicle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Command types understood by the vehicle link.
const (
	CommandClimateControl  = "climate_control"
	CommandNavigation      = "navigation"
	CommandMedia           = "media"
	CommandVehicleSettings = "vehicle_settings"
)

var (
	ErrUnknownCommandType = errors.New("unknown vehicle command type")
	ErrInvalidParameters  = errors.New("invalid vehicle command parameters")
)

// Command is a vehicle/dialogue-issued instruction awaiting execution.
type Command struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ClimateControlParams adjusts cabin climate. Nil fields are left unchanged.
type ClimateControlParams struct {
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"description=Target cabin temperature in degrees Celsius"`
	FanSpeed    *int     `json:"fan_speed,omitempty" jsonschema:"description=Fan speed level"`
	Zone        string   `json:"zone,omitempty" jsonschema:"description=Climate zone,enum=,enum=driver,enum=passenger,enum=rear,enum=all"`
}

// NavigationParams sets a navigation destination.
type NavigationParams struct {
	Destination      string         `json:"destination" jsonschema:"description=Destination address or point of interest"`
	RoutePreferences map[string]any `json:"route_preferences,omitempty" jsonschema:"description=Optional routing preferences"`
}

// MediaParams controls media playback.
type MediaParams struct {
	Action  string `json:"action" jsonschema:"description=Playback action,enum=play,enum=pause,enum=stop,enum=next,enum=previous"`
	Source  string `json:"source,omitempty" jsonschema:"description=Media source"`
	Content string `json:"content,omitempty" jsonschema:"description=Content to play"`
}

// SettingsParams updates arbitrary vehicle settings by name.
type SettingsParams struct {
	Settings map[string]any `json:"settings" jsonschema:"description=Setting names mapped to their new values"`
}

// Parameters is the decoded, typed form of a command payload. Exactly one
// field is set, matching the command type.
type Parameters struct {
	Climate    *ClimateControlParams
	Navigation *NavigationParams
	Media      *MediaParams
	Settings   *SettingsParams
}

// DecodeParameters strictly decodes a command's raw parameters into their
// typed form. Unknown command types and payloads whose field types do not
// match the parameter schema are rejected.
func DecodeParameters(command Command) (Parameters, error) {
	switch command.Type {
	case CommandClimateControl:
		params := ClimateControlParams{}
		if err := decodeStrict(command.Parameters, &params); err != nil {
			return Parameters{}, err
		}
		return Parameters{Climate: &params}, nil
	case CommandNavigation:
		params := NavigationParams{}
		if err := decodeStrict(command.Parameters, &params); err != nil {
			return Parameters{}, err
		}
		return Parameters{Navigation: &params}, nil
	case CommandMedia:
		params := MediaParams{}
		if err := decodeStrict(command.Parameters, &params); err != nil {
			return Parameters{}, err
		}
		return Parameters{Media: &params}, nil
	case CommandVehicleSettings:
		params := SettingsParams{}
		if err := decodeStrict(command.Parameters, &params); err != nil {
			return Parameters{}, err
		}
		return Parameters{Settings: &params}, nil
	default:
		return Parameters{}, fmt.Errorf("%w: %q", ErrUnknownCommandType, command.Type)
	}
}

func decodeStrict(raw map[string]any, into any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

// Descriptor describes one command type: its name, what it does, and the
// reflected schema of its parameters. The dialogue collaborator hands these
// to its language model so generated commands match the vocabulary.
type Descriptor struct {
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Descriptors returns the full command vocabulary.
func Descriptors() []Descriptor {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return []Descriptor{
		{
			Type:        CommandClimateControl,
			Description: "Adjust cabin temperature, fan speed, or climate zone",
			Parameters:  reflector.Reflect(&ClimateControlParams{}),
		},
		{
			Type:        CommandNavigation,
			Description: "Set or change the navigation destination",
			Parameters:  reflector.Reflect(&NavigationParams{}),
		},
		{
			Type:        CommandMedia,
			Description: "Control media playback",
			Parameters:  reflector.Reflect(&MediaParams{}),
		},
		{
			Type:        CommandVehicleSettings,
			Description: "Update named vehicle settings",
			Parameters:  reflector.Reflect(&SettingsParams{}),
		},
	}
}
