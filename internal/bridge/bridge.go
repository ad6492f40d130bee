package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hollis-lab/spectra-core/internal/history"
	"github.com/hollis-lab/spectra-core/internal/infrastructure/mqtt"
	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid command topic.
	minTopicParts = 3

	// commandQueueDepth bounds pending commands per unit. Writes against
	// slow hardware should back-pressure clients, not pile up unbounded.
	commandQueueDepth = 16
)

// MQTTClient is the interface for MQTT operations.
// Satisfied by *mqtt.Client; allows mocking in tests.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// CommandRecorder persists received commands and their outcomes.
// Implemented by history.Repository; nil disables persistence.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, rec history.CommandRecord) error
}

// RefreshTelemetry receives refresh cycle outcomes.
// Implemented by influxdb.Client; nil disables telemetry.
type RefreshTelemetry interface {
	WriteRefreshResult(unitID string, duration time.Duration, ok bool)
	WriteCommandResult(unitID string, channel string, outcome string)
}

// UnitOptions describes one spectrograph to attach.
type UnitOptions struct {
	// Config is the driver configuration for the unit.
	Config spectro.UnitConfig

	// Session is the vendor session the unit drives.
	Session spectro.Session

	// Detector supplies geometry during discovery. Optional.
	Detector spectro.Detector

	// RefreshInterval triggers periodic refreshes when no writes arrive.
	// Zero disables the ticker.
	RefreshInterval time.Duration
}

// Options holds configuration for creating a bridge.
type Options struct {
	// ServiceID names the daemon in health topics.
	ServiceID string

	// Version is the daemon software version.
	Version string

	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// QoS applies to all state and ack publishes.
	QoS byte

	// Units lists the spectrographs to attach. Discovery runs during New.
	Units []UnitOptions

	// History persists parameter changes and command outcomes. Optional.
	History *history.Repository

	// Telemetry receives parameter values and outcomes. Optional.
	Telemetry Telemetry

	// RefreshTelemetry receives refresh and command outcomes. Optional.
	// Usually the same object as Telemetry.
	RefreshTelemetry RefreshTelemetry

	// HealthInterval overrides the health reporting period. Optional.
	HealthInterval time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// unitWorker serialises all access to one unit.
//
// The driver performs no internal locking; every write, refresh and
// diagnostic read goes through mu.
type unitWorker struct {
	unit            *spectro.Unit
	pub             *statePublisher
	cmds            chan CommandMessage
	refreshInterval time.Duration
	mu              sync.Mutex
}

// Bridge orchestrates translation between spectrograph units and MQTT.
// It handles command dispatch, state publication, health reporting and
// graceful shutdown.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	serviceID string
	mqtt      MQTTClient
	qos       byte
	health    *HealthReporter
	recorder  CommandRecorder
	telemetry RefreshTelemetry

	workers map[string]*unitWorker

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// New creates a bridge and attaches every configured unit.
//
// Discovery runs here: each unit initialises its vendor session, probes
// hardware topology and publishes its first full state. A unit whose
// session cannot initialise or that reports no devices fails the whole
// constructor.
//
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if len(opts.Units) == 0 {
		return nil, fmt.Errorf("at least one unit is required")
	}
	serviceID := opts.ServiceID
	if serviceID == "" {
		serviceID = "spectrad"
	}

	b := &Bridge{
		serviceID: serviceID,
		mqtt:      opts.MQTT,
		qos:       opts.QoS,
		telemetry: opts.RefreshTelemetry,
		workers:   make(map[string]*unitWorker, len(opts.Units)),
		done:      make(chan struct{}),
		logger:    opts.Logger,
	}
	if opts.History != nil {
		b.recorder = opts.History
	}

	for _, uo := range opts.Units {
		if _, exists := b.workers[uo.Config.ID]; exists {
			return nil, fmt.Errorf("duplicate unit id %q", uo.Config.ID)
		}

		var rec HistoryRecorder
		if opts.History != nil {
			rec = opts.History
		}
		pub := newStatePublisher(uo.Config.ID, opts.MQTT, opts.QoS, opts.Logger, rec, opts.Telemetry)

		unit, err := spectro.NewUnit(spectro.Options{
			Config:    uo.Config,
			Session:   uo.Session,
			Detector:  uo.Detector,
			Publisher: pub,
			Logger:    opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("attaching unit %s: %w", uo.Config.ID, err)
		}
		pub.setSource(history.SourceRefresh)

		b.workers[uo.Config.ID] = &unitWorker{
			unit:            unit,
			pub:             pub,
			cmds:            make(chan CommandMessage, commandQueueDepth),
			refreshInterval: uo.RefreshInterval,
		}
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		ServiceID: serviceID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
	})
	b.health.SetUnitCount(len(b.workers))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// This subscribes to command topics, starts the per-unit workers,
// and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := mqtt.Topics{}.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, b.qos, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	for id, w := range b.workers {
		b.wg.Add(1)
		go b.runWorker(ctx, id, w)
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started", "service_id", b.serviceID, "units", len(b.workers))
	return nil
}

// Stop gracefully shuts down the bridge.
// Pending commands are dropped; units are closed after their workers exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()

		b.health.Stop()

		for id, w := range b.workers {
			w.mu.Lock()
			if err := w.unit.Close(); err != nil {
				b.logError("closing unit", err, "unit", id)
			}
			w.mu.Unlock()
		}

		b.logInfo("bridge stopped")
	})
}

// handleCommandMessage routes an incoming command to its unit worker.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("invalid command topic %q", topic)
	}
	unitID := parts[2]

	cmd, err := ParseCommand(payload)
	if err != nil {
		b.publishAck(unitID, NewAckError(CommandMessage{}, unitID, 0,
			AckRejected, ErrCodeInvalidPayload, err.Error()))
		return err
	}

	w, ok := b.workers[unitID]
	if !ok {
		b.publishAck(unitID, NewAckError(cmd, unitID, cmd.Address,
			AckRejected, ErrCodeUnknownUnit, fmt.Sprintf("unit %s not attached", unitID)))
		return fmt.Errorf("unit %s not attached", unitID)
	}

	select {
	case w.cmds <- cmd:
		return nil
	default:
		b.publishAck(unitID, NewAckError(cmd, unitID, cmd.Address,
			AckRejected, ErrCodeBusy, "command queue full"))
		return fmt.Errorf("unit %s command queue full", unitID)
	}
}

// runWorker serialises commands and periodic refreshes for one unit.
func (b *Bridge) runWorker(ctx context.Context, unitID string, w *unitWorker) {
	defer b.wg.Done()

	var tick <-chan time.Time
	if w.refreshInterval > 0 {
		ticker := time.NewTicker(w.refreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case cmd := <-w.cmds:
			b.executeCommand(unitID, w, cmd)
		case <-tick:
			b.refreshUnit(unitID, w)
		}
	}
}

// executeCommand validates a command, drives the hardware and acknowledges.
func (b *Bridge) executeCommand(unitID string, w *unitWorker, cmd CommandMessage) {
	b.logInfo("received command",
		"command_id", cmd.ID, "unit", unitID,
		"channel", cmd.Channel, "value", cmd.Value)

	ch, err := spectro.ParseChannel(cmd.Channel)
	if err != nil {
		ack := NewAckError(cmd, unitID, cmd.Address,
			AckRejected, ErrCodeUnknownChannel, err.Error())
		b.finishCommand(unitID, cmd, ack)
		return
	}
	if !ch.Writable() {
		ack := NewAckError(cmd, unitID, cmd.Address,
			AckRejected, ErrCodeReadOnly, fmt.Sprintf("channel %s is read-only", ch))
		b.finishCommand(unitID, cmd, ack)
		return
	}

	w.mu.Lock()
	w.pub.setSource(history.SourceCommand)
	if ch.Float() {
		err = w.unit.WriteFloat(cmd.Address, ch, cmd.Value)
	} else {
		err = w.unit.WriteInt(cmd.Address, ch, int(cmd.Value))
	}
	w.pub.setSource(history.SourceRefresh)
	w.mu.Unlock()

	var ack AckMessage
	if err != nil {
		ack = NewAckError(cmd, unitID, cmd.Address, AckFailed, ErrCodeCommandFailed, err.Error())
	} else {
		ack = NewAck(cmd, unitID, cmd.Address, AckAccepted)
	}
	b.finishCommand(unitID, cmd, ack)
}

// finishCommand records the outcome, then publishes the ack.
// The ack goes out last so clients observing it can already query history.
func (b *Bridge) finishCommand(unitID string, cmd CommandMessage, ack AckMessage) {
	if b.telemetry != nil {
		b.telemetry.WriteCommandResult(unitID, cmd.Channel, string(ack.Status))
	}

	if b.recorder != nil {
		detail := ""
		if ack.Error != nil {
			detail = ack.Error.Message
		}
		err := b.recorder.RecordCommand(context.Background(), history.CommandRecord{
			CommandID: cmd.ID,
			UnitID:    unitID,
			Channel:   cmd.Channel,
			Address:   cmd.Address,
			Value:     cmd.Value,
			Outcome:   string(ack.Status),
			Detail:    detail,
		})
		if err != nil {
			b.logError("recording command", err, "command_id", cmd.ID)
		}
	}

	b.publishAck(unitID, ack)
}

// refreshUnit runs one periodic refresh cycle.
func (b *Bridge) refreshUnit(unitID string, w *unitWorker) {
	start := time.Now()

	w.mu.Lock()
	err := w.unit.Refresh()
	w.mu.Unlock()

	if err != nil {
		b.logWarn("periodic refresh failed", "unit", unitID, "error", err)
	}
	if b.telemetry != nil {
		b.telemetry.WriteRefreshResult(unitID, time.Since(start), err == nil)
	}
}

// publishAck publishes an acknowledgment message for a unit.
func (b *Bridge) publishAck(unitID string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("marshalling ack", err, "command_id", ack.CommandID)
		return
	}
	topic := mqtt.Topics{}.Ack(unitID)
	if err := b.mqtt.Publish(topic, payload, b.qos, false); err != nil {
		b.logError("publishing ack", err, "topic", topic)
	}
}

// UnitIDs returns the attached unit identifiers, unordered.
func (b *Bridge) UnitIDs() []string {
	ids := make([]string, 0, len(b.workers))
	for id := range b.workers {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the cached parameter set of one unit in publication
// order. The second return is false for unknown units.
func (b *Bridge) Snapshot(unitID string) ([]spectro.Param, bool) {
	w, ok := b.workers[unitID]
	if !ok {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unit.Snapshot(), true
}

// GratingDescription describes one grating position.
type GratingDescription struct {
	Exists        bool    `json:"exists"`
	MinWavelength float64 `json:"min_wavelength"`
	MaxWavelength float64 `json:"max_wavelength"`
}

// UnitDescription summarises a unit's discovered topology.
type UnitDescription struct {
	ID           string               `json:"id"`
	Pixels       int                  `json:"pixels"`
	GratingCount int                  `json:"grating_count"`
	Gratings     []GratingDescription `json:"gratings"`
	Slits        []bool               `json:"slits"`
	Flippers     []bool               `json:"flippers"`
}

// Describe returns the discovered topology of one unit.
// The second return is false for unknown units.
func (b *Bridge) Describe(unitID string) (UnitDescription, bool) {
	w, ok := b.workers[unitID]
	if !ok {
		return UnitDescription{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	desc := UnitDescription{
		ID:           unitID,
		Pixels:       w.unit.NumPixels(),
		GratingCount: w.unit.GratingCount(),
	}
	for i := 0; i < spectro.MaxGratings; i++ {
		g := w.unit.Grating(i)
		desc.Gratings = append(desc.Gratings, GratingDescription{
			Exists:        g.Exists,
			MinWavelength: g.MinWavelength,
			MaxWavelength: g.MaxWavelength,
		})
	}
	for i := 0; i < spectro.MaxSlits; i++ {
		desc.Slits = append(desc.Slits, w.unit.SlitPresent(i))
	}
	for i := 0; i < spectro.MaxFlippers; i++ {
		desc.Flippers = append(desc.Flippers, w.unit.FlipperPresent(i))
	}
	return desc, true
}

// WriteReport writes a plain-text diagnostic report for one unit.
// Returns false for unknown units.
func (b *Bridge) WriteReport(unitID string, out io.Writer) bool {
	w, ok := b.workers[unitID]
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unit.Report(out)
	return true
}

// Refresh runs an immediate refresh cycle for one unit.
func (b *Bridge) Refresh(unitID string) error {
	w, ok := b.workers[unitID]
	if !ok {
		return fmt.Errorf("unit %s not attached", unitID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unit.Refresh()
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, append([]any{"error", err}, args...)...)
	}
}
