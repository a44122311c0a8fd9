// Package command decodes and validates inbound fleet commands and applies
// them to the engine. Every transport goes through Apply.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kilianp07/lampfleet/core/model"
)

// Type names a command.
type Type string

const (
	FailLamp              Type = "fail_lamp"
	SetAmbientTemperature Type = "set_ambient_temperature"
	PlanMission           Type = "plan_mission"
	StartMission          Type = "start_mission"
	ToggleAutoService     Type = "toggle_auto_service"
	LogClientError        Type = "log_client_error"
)

// Temperature bounds accepted by set_ambient_temperature, in °C.
const (
	MinTemperature = -60.0
	MaxTemperature = 60.0
)

// Command is the wire form shared by HTTP and MQTT.
type Command struct {
	Type      Type           `json:"type"`
	LampID    string         `json:"lampId,omitempty"`
	LampIDs   []string       `json:"lampIds,omitempty"`
	MissionID string         `json:"missionId,omitempty"`
	Value     *float64       `json:"value,omitempty"`
	Enabled   *bool          `json:"enabled,omitempty"`
	Message   string         `json:"message,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Target is the command surface of the engine.
type Target interface {
	FailLamp(lampID string) error
	SetAmbientTemperature(v float64)
	PlanMission(lampIDs []string) (model.Mission, error)
	StartMission(missionID string) error
	SetAutoService(enabled bool)
	LogClientError(message string, payload map[string]any) model.LogEntry
}

// Result carries what a command produced, if anything.
type Result struct {
	Mission *model.Mission  `json:"mission,omitempty"`
	Entry   *model.LogEntry `json:"entry,omitempty"`
}

// Decode reads a single JSON command.
func Decode(r io.Reader) (Command, error) {
	var c Command
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Command{}, fmt.Errorf("decode command: %v: %w", err, model.ErrValidation)
	}
	return c, nil
}

// Validate checks the fields required by the command type.
//
//gocyclo:ignore
func (c Command) Validate() error {
	switch c.Type {
	case FailLamp:
		if strings.TrimSpace(c.LampID) == "" {
			return invalid("lampId is required")
		}
	case SetAmbientTemperature:
		if c.Value == nil {
			return invalid("value is required")
		}
		v := *c.Value
		if math.IsNaN(v) || v < MinTemperature || v > MaxTemperature {
			return invalid(fmt.Sprintf("value must be within [%v, %v]", MinTemperature, MaxTemperature))
		}
	case PlanMission:
		if len(c.LampIDs) == 0 {
			return invalid("lampIds must not be empty")
		}
		for _, id := range c.LampIDs {
			if strings.TrimSpace(id) == "" {
				return invalid("lampIds must not contain empty ids")
			}
		}
	case StartMission:
		if strings.TrimSpace(c.MissionID) == "" {
			return invalid("missionId is required")
		}
	case ToggleAutoService:
		if c.Enabled == nil {
			return invalid("enabled is required")
		}
	case LogClientError:
		if strings.TrimSpace(c.Message) == "" {
			return invalid("message is required")
		}
	case "":
		return invalid("type is required")
	default:
		return invalid(fmt.Sprintf("unknown command type %q", c.Type))
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, model.ErrValidation)
}

// Apply validates c and runs it against t.
func Apply(t Target, c Command) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	switch c.Type {
	case FailLamp:
		return Result{}, t.FailLamp(c.LampID)
	case SetAmbientTemperature:
		t.SetAmbientTemperature(*c.Value)
	case PlanMission:
		m, err := t.PlanMission(c.LampIDs)
		if err != nil {
			return Result{}, err
		}
		return Result{Mission: &m}, nil
	case StartMission:
		return Result{}, t.StartMission(c.MissionID)
	case ToggleAutoService:
		t.SetAutoService(*c.Enabled)
	case LogClientError:
		e := t.LogClientError(c.Message, c.Payload)
		return Result{Entry: &e}, nil
	}
	return Result{}, nil
}

// Handler returns a raw-payload entry point for message transports.
func Handler(t Target) func(payload []byte) error {
	return func(payload []byte) error {
		c, err := Decode(bytes.NewReader(payload))
		if err != nil {
			return err
		}
		_, err = Apply(t, c)
		return err
	}
}
