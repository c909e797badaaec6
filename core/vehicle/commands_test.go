package vehicle

import (
	"errors"
	"testing"
)

func TestDecodeClimateParameters(t *testing.T) {
	params, err := DecodeParameters(Command{
		Type: CommandClimateControl,
		Parameters: map[string]any{
			"temperature": 21.5,
			"fan_speed":   3,
			"zone":        "driver",
		},
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if params.Climate == nil {
		t.Fatalf("expected climate parameters to be set")
	}
	if params.Climate.Temperature == nil || *params.Climate.Temperature != 21.5 {
		t.Fatalf("expected temperature 21.5, got %v", params.Climate.Temperature)
	}
	if params.Climate.FanSpeed == nil || *params.Climate.FanSpeed != 3 {
		t.Fatalf("expected fan speed 3, got %v", params.Climate.FanSpeed)
	}
	if params.Climate.Zone != "driver" {
		t.Fatalf("expected driver zone, got %q", params.Climate.Zone)
	}
}

func TestDecodeNavigationParameters(t *testing.T) {
	params, err := DecodeParameters(Command{
		Type: CommandNavigation,
		Parameters: map[string]any{
			"destination":       "Stuttgart Hauptbahnhof",
			"route_preferences": map[string]any{"avoid_tolls": true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if params.Navigation == nil || params.Navigation.Destination != "Stuttgart Hauptbahnhof" {
		t.Fatalf("expected the destination to decode, got %+v", params.Navigation)
	}
}

func TestDecodeRejectsUnknownCommandType(t *testing.T) {
	_, err := DecodeParameters(Command{Type: "warp_drive"})
	if !errors.Is(err, ErrUnknownCommandType) {
		t.Fatalf("expected unknown command type error, got %v", err)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := DecodeParameters(Command{
		Type:       CommandMedia,
		Parameters: map[string]any{"action": "play", "volume": 11},
	})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters error, got %v", err)
	}
}

func TestDecodeRejectsWrongFieldTypes(t *testing.T) {
	_, err := DecodeParameters(Command{
		Type:       CommandClimateControl,
		Parameters: map[string]any{"temperature": "toasty"},
	})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters error, got %v", err)
	}
}

func TestDescriptorsCoverTheVocabulary(t *testing.T) {
	descriptors := Descriptors()
	if len(descriptors) != 4 {
		t.Fatalf("expected four command descriptors, got %d", len(descriptors))
	}

	types := map[string]bool{}
	for _, descriptor := range descriptors {
		types[descriptor.Type] = true
		if descriptor.Parameters == nil {
			t.Fatalf("expected %s to carry a parameter schema", descriptor.Type)
		}
	}
	for _, want := range []string{CommandClimateControl, CommandNavigation, CommandMedia, CommandVehicleSettings} {
		if !types[want] {
			t.Fatalf("expected a descriptor for %s", want)
		}
	}
}
