package engine

import (
	"fmt"

	"github.com/kilianp07/lampfleet/core/model"
)

// FailLamp marks a lamp as waiting for a replacement.
func (e *Engine) FailLamp(lampID string) (err error) {
	defer func() { observeCommand("fail_lamp", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err = e.store.MarkLampForReplacement(lampID); err != nil {
		return err
	}
	e.broadcast()
	return nil
}

// SetAmbientTemperature updates the ambient reading of every lamp.
func (e *Engine) SetAmbientTemperature(v float64) {
	defer observeCommand("set_ambient_temperature", nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.SetAmbientTemperature(v)
	e.broadcast()
}

// PlanMission creates a planned manual mission and returns a copy of it.
func (e *Engine) PlanMission(lampIDs []string) (_ model.Mission, err error) {
	defer func() { observeCommand("plan_mission", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.ctrl.PlanMission(lampIDs)
	if err != nil {
		e.reject("", model.SourceManual, err)
		return model.Mission{}, err
	}
	return m.Clone(), nil
}

// StartMission starts a planned mission. Rejections are recorded in the
// domain log and returned to the caller.
func (e *Engine) StartMission(missionID string) (err error) {
	defer func() { observeCommand("start_mission", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err = e.ctrl.TryStartMission(missionID); err != nil {
		source := model.SourceManual
		if m, ok := e.store.Mission(missionID); ok {
			source = m.Source
		}
		e.reject(missionID, source, err)
		return err
	}
	return nil
}

// SetAutoService toggles the auto-service scheduler.
func (e *Engine) SetAutoService(enabled bool) {
	defer observeCommand("toggle_auto_service", nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.SetAutoService(enabled)
	e.broadcast()
}

// LogClientError records an error reported by an observer.
func (e *Engine) LogClientError(message string, payload map[string]any) model.LogEntry {
	defer observeCommand("log_client_error", nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := e.store.AppendLog(model.LogClientError, message, payload)
	e.broadcast()
	return entry
}

func (e *Engine) reject(missionID string, source model.MissionSource, err error) {
	missionRejections.WithLabelValues(string(source), Reason(err)).Inc()
	payload := map[string]any{"reason": Reason(err), "error": err.Error()}
	msg := fmt.Sprintf("mission rejected: %v", err)
	if missionID != "" {
		payload["missionId"] = missionID
		msg = fmt.Sprintf("mission %s rejected: %v", missionID, err)
	}
	e.store.AppendLog(model.LogMissionRejected, msg, payload)
	e.log.Warnf("%s", msg)
	e.broadcast()
}
