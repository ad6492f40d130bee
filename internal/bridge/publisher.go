package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hollis-lab/spectra-core/internal/history"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/mqtt"
	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// Telemetry receives parameter values for time-series storage.
// Implemented by influxdb.Client; nil disables telemetry.
type Telemetry interface {
	WriteParameter(unitID string, channel string, address int, value float64)
}

// HistoryRecorder persists parameter changes.
// Implemented by history.Repository; nil disables persistence.
type HistoryRecorder interface {
	RecordParameter(ctx context.Context, change history.ParameterChange) error
}

// statePublisher implements spectro.Publisher over MQTT, with optional
// fan-out to SQLite history and InfluxDB telemetry.
//
// The driver republishes the full parameter set after every refresh, so the
// publisher deduplicates history writes: a row is recorded only when a value
// differs from the last one seen on that channel and address. MQTT and
// telemetry receive every publish.
//
// Not safe for concurrent use; each unit worker owns one publisher.
type statePublisher struct {
	unitID  string
	mqtt    MQTTClient
	qos     byte
	logger  Logger
	history HistoryRecorder
	influx  Telemetry

	// source labels the next history rows (discovery, refresh, command).
	source string

	lastInt   map[stateKey]int
	lastFloat map[stateKey]float64
}

type stateKey struct {
	channel spectro.Channel
	address int
}

func newStatePublisher(unitID string, client MQTTClient, qos byte, logger Logger, rec HistoryRecorder, tel Telemetry) *statePublisher {
	return &statePublisher{
		unitID:    unitID,
		mqtt:      client,
		qos:       qos,
		logger:    logger,
		history:   rec,
		influx:    tel,
		source:    history.SourceDiscovery,
		lastInt:   make(map[stateKey]int),
		lastFloat: make(map[stateKey]float64),
	}
}

// setSource labels subsequent history rows with their origin.
func (p *statePublisher) setSource(source string) {
	p.source = source
}

// PublishInt publishes an integer parameter value.
func (p *statePublisher) PublishInt(addr int, ch spectro.Channel, value int) {
	p.publish(addr, ch, float64(value))

	key := stateKey{ch, addr}
	last, seen := p.lastInt[key]
	if !seen || last != value {
		p.lastInt[key] = value
		p.record(addr, ch, float64(value))
	}
}

// PublishFloat publishes a float parameter value.
func (p *statePublisher) PublishFloat(addr int, ch spectro.Channel, value float64) {
	p.publish(addr, ch, value)

	key := stateKey{ch, addr}
	last, seen := p.lastFloat[key]
	if !seen || last != value {
		p.lastFloat[key] = value
		p.record(addr, ch, value)
	}
}

// PublishFloatArray publishes the calibration curve.
func (p *statePublisher) PublishFloatArray(ch spectro.Channel, values []float64) {
	if p.mqtt == nil {
		return
	}

	msg := CalibrationMessage{
		UnitID:    p.unitID,
		Timestamp: time.Now().UTC(),
		Values:    values,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logWarn("marshalling calibration", "error", err)
		return
	}

	topic := mqtt.Topics{}.Calibration(p.unitID)
	if err := p.mqtt.Publish(topic, payload, p.qos, true); err != nil {
		p.logWarn("publishing calibration", "topic", topic, "error", err)
	}
}

func (p *statePublisher) publish(addr int, ch spectro.Channel, value float64) {
	if p.influx != nil {
		p.influx.WriteParameter(p.unitID, string(ch), addr, value)
	}

	if p.mqtt == nil {
		return
	}

	msg := StateMessage{
		UnitID:    p.unitID,
		Timestamp: time.Now().UTC(),
		Channel:   string(ch),
		Address:   addr,
		Value:     value,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logWarn("marshalling state", "channel", string(ch), "error", err)
		return
	}

	topic := mqtt.Topics{}.State(p.unitID, string(ch), addr)
	if err := p.mqtt.Publish(topic, payload, p.qos, true); err != nil {
		p.logWarn("publishing state", "topic", topic, "error", err)
	}
}

func (p *statePublisher) record(addr int, ch spectro.Channel, value float64) {
	if p.history == nil {
		return
	}

	err := p.history.RecordParameter(context.Background(), history.ParameterChange{
		UnitID:  p.unitID,
		Channel: string(ch),
		Address: addr,
		Value:   value,
		Source:  p.source,
	})
	if err != nil {
		p.logWarn("recording parameter history", "channel", string(ch), "error", err)
	}
}

func (p *statePublisher) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
