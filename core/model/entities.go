package model

import (
	"time"

	"github.com/kilianp07/lampfleet/core/geo"
)

// LampStatus is the replacement state of a lamp.
type LampStatus string

const (
	LampOK         LampStatus = "ok"
	LampReplace    LampStatus = "replace"
	LampInProgress LampStatus = "in_progress"
)

// Lamp is a street-light pole carrying one LED cassette.
type Lamp struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Lat             float64    `json:"lat"`
	Lng             float64    `json:"lng"`
	Status          LampStatus `json:"status"`
	PowerOn         bool       `json:"powerOn"`
	CassettePresent bool       `json:"cassettePresent"`
	EnergyW         float64    `json:"energyW"`
	AmbientTemp     float64    `json:"ambientTemp"`
}

// Point returns the lamp coordinates.
func (l Lamp) Point() geo.Point { return geo.Point{Lat: l.Lat, Lng: l.Lng} }

// SwapStatus tracks the container swap performed while a drone is serviced.
type SwapStatus string

const (
	SwapNotReplaced SwapStatus = "not_replaced"
	SwapInProgress  SwapStatus = "in_progress"
	SwapReplaced    SwapStatus = "replaced"
)

// Dock is a rooftop station basing exactly one drone.
type Dock struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Lat                 float64    `json:"lat"`
	Lng                 float64    `json:"lng"`
	RoofHeightM         float64    `json:"roofHeightM"`
	FullContainers      int        `json:"fullContainers"`
	EmptyContainers     int        `json:"emptyContainers"`
	IsOperational       bool       `json:"isOperational"`
	ContainerSwapStatus SwapStatus `json:"containerSwapStatus"`
	LastSwapCompletedAt *time.Time `json:"lastSwapCompletedAt"`
}

// Point returns the dock coordinates.
func (d Dock) Point() geo.Point { return geo.Point{Lat: d.Lat, Lng: d.Lng} }

// DroneStatus is the flight state of a drone.
type DroneStatus string

const (
	DroneIdle      DroneStatus = "idle"
	DroneCharging  DroneStatus = "charging"
	DroneEnroute   DroneStatus = "enroute"
	DroneReplacing DroneStatus = "replacing"
	DroneServicing DroneStatus = "servicing"
)

// Drone carries a container of replacement cassettes between its dock and lamps.
type Drone struct {
	ID                      string      `json:"id"`
	Battery                 float64     `json:"battery"`
	IsOperational           bool        `json:"isOperational"`
	Status                  DroneStatus `json:"status"`
	TargetLampID            string      `json:"targetLampId,omitempty"`
	PendingContainerOps     int         `json:"pendingContainerOps"`
	ContainerLampsRemaining int         `json:"containerLampsRemaining"`
	ServiceEndsAt           *time.Time  `json:"serviceEndsAt"`
	HomeDockID              string      `json:"homeDockId"`
	ActiveDockID            string      `json:"activeDockId"`
	Position                geo.Point   `json:"position"`

	ReplaceStartedAt *time.Time `json:"replaceStartedAt,omitempty"`
	MissionID        string     `json:"missionId,omitempty"`
}

// Resting reports whether the drone sits at its dock without a task.
func (d Drone) Resting() bool {
	return d.Status == DroneIdle || d.Status == DroneCharging
}

// RestStatus is the status a drone takes once back at the dock.
func RestStatus(battery float64) DroneStatus {
	if battery < 100 {
		return DroneCharging
	}
	return DroneIdle
}

// LogType classifies a LogEntry.
type LogType string

const (
	LogLampFailed         LogType = "lamp_failed"
	LogLampReplaced       LogType = "lamp_replaced"
	LogAmbientTemperature LogType = "ambient_temperature"
	LogMissionPlanned     LogType = "mission_planned"
	LogMissionStarted     LogType = "mission_started"
	LogMissionRejected    LogType = "mission_rejected"
	LogMissionCompleted   LogType = "mission_completed"
	LogDroneReturning     LogType = "drone_returning"
	LogDroneCreated       LogType = "drone_created"
	LogServiceStarted     LogType = "dock_service_started"
	LogServiceCompleted   LogType = "dock_service_completed"
	LogDockRefill         LogType = "dock_refill"
	LogAutoService        LogType = "auto_service"
	LogAutoServiceFailed  LogType = "auto_service_failed"
	LogClientError        LogType = "client_error"
)

// LogEntry is an immutable record of a domain event.
type LogEntry struct {
	ID        string         `json:"id"`
	Type      LogType        `json:"type"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
