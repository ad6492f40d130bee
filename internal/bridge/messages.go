package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MQTT message types exchanged between instrument control clients and spectrad.

// CommandMessage is sent by a client to write one parameter.
// Topic: spectra/command/{unit}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	// Assigned by the client; spectrad generates one if absent.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Channel is the parameter channel name (e.g., "wavelength", "slit_width").
	Channel string `json:"channel"`

	// Address selects the element for addressed channels (slits, flippers,
	// gratings). Ignored for unaddressed channels.
	Address int `json:"address"`

	// Value is the value to write. Integer channels truncate.
	Value float64 `json:"value"`

	// Source indicates where the command originated (e.g., "cli", "sequencer").
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was dispatched to the hardware.
	AckAccepted AckStatus = "accepted"

	// AckRejected indicates the command was malformed or targeted an
	// unknown channel and never reached the hardware.
	AckRejected AckStatus = "rejected"

	// AckFailed indicates the hardware rejected the command.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent by spectrad to acknowledge a command.
// Topic: spectra/ack/{unit}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// UnitID is the spectrograph unit identifier.
	UnitID string `json:"unit_id"`

	// Channel and Address echo the command target (after address clamping).
	Channel string `json:"channel"`
	Address int    `json:"address"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Error contains details if status is "rejected" or "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for unsuccessful commands.
type AckError struct {
	// Code is the error code (e.g., "UNKNOWN_CHANNEL", "COMMAND_FAILED").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownUnit    = "UNKNOWN_UNIT"
	ErrCodeUnknownChannel = "UNKNOWN_CHANNEL"
	ErrCodeReadOnly       = "READ_ONLY_CHANNEL"
	ErrCodeCommandFailed  = "COMMAND_FAILED"
	ErrCodeBusy           = "BUSY"
)

// StateMessage carries one published parameter value.
// Topic: spectra/state/{unit}/{channel}/{address}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// UnitID is the spectrograph unit identifier.
	UnitID string `json:"unit_id"`

	// Timestamp is when the value was published (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Channel is the parameter channel name.
	Channel string `json:"channel"`

	// Address is the element address (0 for unaddressed channels).
	Address int `json:"address"`

	// Value is the current cached value.
	Value float64 `json:"value"`
}

// CalibrationMessage carries a unit's per-pixel wavelength curve.
// Topic: spectra/state/{unit}/calibration
// QoS: 1, Retained: Yes
type CalibrationMessage struct {
	// UnitID is the spectrograph unit identifier.
	UnitID string `json:"unit_id"`

	// Timestamp is when the curve was published (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Values is the wavelength at each detector pixel, in nanometres.
	Values []float64 `json:"values"`
}

// HealthStatus represents the operational status of the daemon.
type HealthStatus string

const (
	// HealthHealthy indicates the daemon is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the daemon is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the daemon is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the daemon is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports operational status.
// Topic: spectra/health/{service}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Service is the reporting service identifier (e.g., "spectrad").
	Service string `json:"service"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the daemon software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the daemon has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// UnitsManaged is the number of attached spectrograph units.
	UnitsManaged int `json:"units_managed"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// ParseCommand decodes a command payload and fills in missing metadata.
//
// A command without an ID gets a generated UUID so every acknowledgment can
// be correlated. A zero timestamp is replaced with the receive time.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{}, fmt.Errorf("parsing command: %w", err)
	}
	if cmd.Channel == "" {
		return CommandMessage{}, fmt.Errorf("parsing command: channel is required")
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}
	return cmd, nil
}

// NewAck builds a successful acknowledgment for a command.
func NewAck(cmd CommandMessage, unitID string, address int, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		UnitID:    unitID,
		Channel:   cmd.Channel,
		Address:   address,
		Status:    status,
	}
}

// NewAckError builds an unsuccessful acknowledgment with error detail.
func NewAckError(cmd CommandMessage, unitID string, address int, status AckStatus, code, message string) AckMessage {
	ack := NewAck(cmd, unitID, address, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}
