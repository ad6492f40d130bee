package spectro

import (
	"fmt"
	"io"
)

// Logger is the minimal structured logging surface the unit needs.
// Satisfied by logging.Logger and *slog.Logger. Optional; nil disables
// logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Publisher receives cached parameter values as the unit (re)publishes them.
// The bridge implements this to forward updates to the host framework.
// Optional; nil disables outward publication.
type Publisher interface {
	PublishInt(addr int, ch Channel, value int)
	PublishFloat(addr int, ch Channel, value float64)
	PublishFloatArray(ch Channel, values []float64)
}

// UnitConfig is the construction-time configuration of one unit.
type UnitConfig struct {
	// ID names the unit in topics, logs and persistence.
	ID string

	// DeviceIndex selects the physical spectrograph within the vendor
	// session.
	DeviceIndex int

	// INIPath is the vendor configuration file used to initialise the
	// session.
	INIPath string

	// Priority and StackSize are scheduling hints passed through from the
	// host framework. The driver records them but does not act on them.
	Priority  int
	StackSize int
}

// Options carries the collaborators for NewUnit.
type Options struct {
	Config   UnitConfig
	Session  Session
	Detector Detector

	// Publisher is optional; nil disables outward publication.
	Publisher Publisher

	// Logger is optional; nil disables logging.
	Logger Logger
}

// GratingInfo is the fixed description of one grating slot, set during
// discovery.
type GratingInfo struct {
	Exists        bool
	MinWavelength float64
	MaxWavelength float64
}

// Unit drives one physical spectrograph. Construct with NewUnit; all methods
// must be serialised by the caller.
type Unit struct {
	cfg      UnitConfig
	session  Session
	detector Detector
	pub      Publisher
	log      Logger

	// Immutable after discovery.
	slitPresent    []bool
	flipperPresent []bool
	gratings       []GratingInfo
	gratingCount   int
	numPixels      int

	// Mutated only by Refresh and Write*.
	cache       *paramCache
	calibration []float64
}

// NewUnit constructs a unit and runs capability discovery.
//
// Session initialisation and the attached-device check are fatal: an error
// return means the unit never became usable. Later discovery failures
// (detector geometry, element probes) degrade the corresponding capability
// to absent and are logged, but do not abort construction.
//
// Discovery finishes with one full refresh and a republication of every
// addressable channel.
func NewUnit(opts Options) (*Unit, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("%w: session is required", ErrInitFailed)
	}
	if opts.Detector == nil {
		return nil, fmt.Errorf("%w: detector is required", ErrInitFailed)
	}
	if opts.Config.ID == "" {
		return nil, fmt.Errorf("%w: unit id is required", ErrInitFailed)
	}

	u := &Unit{
		cfg:            opts.Config,
		session:        opts.Session,
		detector:       opts.Detector,
		pub:            opts.Publisher,
		log:            opts.Logger,
		slitPresent:    make([]bool, MaxSlits),
		flipperPresent: make([]bool, MaxFlippers),
		gratings:       make([]GratingInfo, MaxGratings),
		cache:          newParamCache(MaxAddresses),
	}

	if err := u.discover(); err != nil {
		return nil, err
	}
	return u, nil
}

// discover runs the one-time capability enumeration. Step order matters:
// calibration sizing depends on the detector geometry fetched first.
func (u *Unit) discover() error {
	dev := u.cfg.DeviceIndex

	if err := u.translate(u.session.Initialize(u.cfg.INIPath), "Initialize"); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	numDevices, code := u.session.NumberDevices()
	if err := u.translate(code, "NumberDevices"); err != nil {
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	if numDevices < 1 {
		u.logError("no spectrographs found", "num_devices", numDevices)
		return fmt.Errorf("%w: num_devices=%d", ErrNoDevices, numDevices)
	}

	// Detector geometry. Failures here degrade the calibration curve to
	// empty rather than aborting.
	if width, _, err := u.detector.Geometry(); err != nil {
		u.logError("detector geometry query failed", "error", err)
	} else {
		u.translate(u.session.SetNumberPixels(dev, width), "SetNumberPixels")
	}
	if xSize, _, err := u.detector.PixelSize(); err != nil {
		u.logError("detector pixel size query failed", "error", err)
	} else {
		u.translate(u.session.SetPixelWidth(dev, xSize), "SetPixelWidth")
	}
	if pixels, code := u.session.NumberPixels(dev); u.translate(code, "NumberPixels") == nil {
		u.numPixels = pixels
	}

	// Slit probe: a failed probe leaves the slot absent.
	for i := range u.slitPresent {
		present, code := u.session.SlitPresent(dev, i+1)
		if u.translate(code, "SlitPresent") != nil {
			present = false
		}
		u.slitPresent[i] = present
		u.cache.setInt(i, ChannelSlitExists, boolToInt(present))
	}

	// Grating enumeration plus fixed wavelength limits per grating.
	count, code := u.session.NumberGratings(dev)
	if u.translate(code, "NumberGratings") != nil {
		count = 0
	}
	if count > MaxGratings {
		u.logWarn("device reports more gratings than supported",
			"reported", count, "max", MaxGratings)
		count = MaxGratings
	}
	u.gratingCount = count
	u.cache.setInt(0, ChannelGratingCount, count)
	for g := 0; g < count; g++ {
		u.gratings[g].Exists = true
		u.cache.setInt(g, ChannelGratingExists, 1)
		min, max, code := u.session.WavelengthLimits(dev, g+1)
		if u.translate(code, "WavelengthLimits") != nil {
			continue
		}
		u.gratings[g].MinWavelength = min
		u.gratings[g].MaxWavelength = max
		u.cache.setFloat(g, ChannelMinWavelength, min)
		u.cache.setFloat(g, ChannelMaxWavelength, max)
	}
	for g := count; g < MaxGratings; g++ {
		u.cache.setInt(g, ChannelGratingExists, 0)
	}

	// Flip-mirror probe.
	for i := range u.flipperPresent {
		present, code := u.session.FlipperPresent(dev, i+1)
		if u.translate(code, "FlipperPresent") != nil {
			present = false
		}
		u.flipperPresent[i] = present
		u.cache.setInt(i, ChannelFlipperExists, boolToInt(present))
	}

	u.calibration = make([]float64, u.numPixels)

	if err := u.Refresh(); err != nil {
		u.logError("initial refresh failed", "error", err)
	}
	u.republishAll()

	u.logInfo("discovery complete",
		"unit", u.cfg.ID,
		"gratings", u.gratingCount,
		"pixels", u.numPixels,
	)
	return nil
}

// Refresh pulls the complete live state into the cache and republishes it.
//
// The pull is sequential and short-circuiting: the first hardware error
// aborts the whole refresh, later fields keep the values of the last
// successful refresh, and nothing is republished.
func (u *Unit) Refresh() error {
	dev := u.cfg.DeviceIndex

	for i, present := range u.flipperPresent {
		if !present {
			continue
		}
		port, code := u.session.FlipperPort(dev, i+1)
		if err := u.translate(code, "FlipperPort"); err != nil {
			return fmt.Errorf("%w: %w", ErrRefreshAborted, err)
		}
		u.cache.setInt(i, ChannelFlipperPort, int(port))
	}

	grating, code := u.session.Grating(dev)
	if err := u.translate(code, "Grating"); err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshAborted, err)
	}
	u.cache.setInt(0, ChannelGrating, grating)

	wavelength, code := u.session.Wavelength(dev)
	if err := u.translate(code, "Wavelength"); err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshAborted, err)
	}
	u.cache.setFloat(0, ChannelWavelength, wavelength)

	for i, present := range u.slitPresent {
		u.cache.setFloat(i, ChannelSlitWidth, 0)
		if !present {
			continue
		}
		width, code := u.session.SlitWidth(dev, i+1)
		if err := u.translate(code, "SlitWidth"); err != nil {
			return fmt.Errorf("%w: %w", ErrRefreshAborted, err)
		}
		u.cache.setFloat(i, ChannelSlitWidth, width)
	}

	curve, code := u.session.Calibration(dev, u.numPixels)
	if err := u.translate(code, "Calibration"); err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshAborted, err)
	}
	copy(u.calibration, curve)

	// Display limits come from the curve endpoints, not the grating's true
	// limits. A first-order approximation; a real fit would need at least a
	// third-order polynomial.
	if u.numPixels > 0 {
		u.cache.setFloat(0, ChannelMinWavelength, u.calibration[0])
		u.cache.setFloat(0, ChannelMaxWavelength, u.calibration[u.numPixels-1])
	}

	u.republishAll()
	u.publishCalibration()
	return nil
}

// WriteInt writes an integer channel: stage the cache, command the hardware
// where the channel and presence flags call for it, refresh, republish the
// touched address. The returned error reflects the hardware command only; a
// skipped command (absent element, read-only channel) returns nil.
func (u *Unit) WriteInt(addr int, ch Channel, value int) error {
	addr = clampAddr(addr, u.cache.addresses())

	// Staged before the command on purpose: the cache may diverge from
	// hardware until the next successful refresh.
	u.cache.setInt(addr, ch, value)

	var cmdErr error
	dev := u.cfg.DeviceIndex
	switch ch {
	case ChannelGrating:
		if err := u.translate(u.session.SetGrating(dev, value), "SetGrating"); err != nil {
			cmdErr = fmt.Errorf("%w: %w", ErrCommandFailed, err)
		}
	case ChannelFlipperPort:
		// Addresses clamp against the cache width, which is wider than the
		// flipper table. Absent or out-of-table flippers are a silent no-op.
		if u.FlipperPresent(addr) {
			if err := u.translate(u.session.SetFlipperPort(dev, addr+1, Port(value)), "SetFlipperPort"); err != nil {
				cmdErr = fmt.Errorf("%w: %w", ErrCommandFailed, err)
			}
		}
	}

	if err := u.Refresh(); err != nil {
		u.logError("post-write refresh failed", "channel", string(ch), "error", err)
	}
	u.republishAddr(addr)

	u.logDebug("write complete",
		"channel", string(ch), "addr", addr, "value", value, "error", cmdErr)
	return cmdErr
}

// WriteFloat is the float counterpart of WriteInt.
func (u *Unit) WriteFloat(addr int, ch Channel, value float64) error {
	addr = clampAddr(addr, u.cache.addresses())

	u.cache.setFloat(addr, ch, value)

	var cmdErr error
	dev := u.cfg.DeviceIndex
	switch ch {
	case ChannelWavelength:
		if err := u.translate(u.session.SetWavelength(dev, value), "SetWavelength"); err != nil {
			cmdErr = fmt.Errorf("%w: %w", ErrCommandFailed, err)
		}
	case ChannelSlitWidth:
		if u.SlitPresent(addr) {
			if err := u.translate(u.session.SetSlitWidth(dev, addr+1, value), "SetSlitWidth"); err != nil {
				cmdErr = fmt.Errorf("%w: %w", ErrCommandFailed, err)
			}
		}
	}

	if err := u.Refresh(); err != nil {
		u.logError("post-write refresh failed", "channel", string(ch), "error", err)
	}
	u.republishAddr(addr)

	u.logDebug("write complete",
		"channel", string(ch), "addr", addr, "value", value, "error", cmdErr)
	return cmdErr
}

// translate converts a vendor status code into an error, logging code,
// calling context and the vendor's description. Descriptions are truncated,
// never rejected. Success translates to nil.
func (u *Unit) translate(code Code, context string) error {
	if code.OK() {
		return nil
	}
	desc := code.Description()
	if len(desc) > maxErrorDescription {
		desc = desc[:maxErrorDescription]
	}
	u.logError("spectrograph call failed",
		"unit", u.cfg.ID,
		"context", context,
		"code", int(code),
		"description", desc,
	)
	return &StatusError{Code: code, Context: context, Description: desc}
}

// republishAll emits every cached scalar for every address.
func (u *Unit) republishAll() {
	for addr := 0; addr < u.cache.addresses(); addr++ {
		u.republishAddr(addr)
	}
}

// republishAddr emits every cached scalar at one address, in channel order.
func (u *Unit) republishAddr(addr int) {
	if u.pub == nil {
		return
	}
	for _, ch := range channelOrder {
		if v, ok := u.cache.getFloat(addr, ch); ok {
			u.pub.PublishFloat(addr, ch, v)
			continue
		}
		if v, ok := u.cache.getInt(addr, ch); ok {
			u.pub.PublishInt(addr, ch, v)
		}
	}
}

// publishCalibration emits the calibration curve as one array update.
func (u *Unit) publishCalibration() {
	if u.pub == nil {
		return
	}
	u.pub.PublishFloatArray(ChannelCalibration, u.Calibration())
}

// ID returns the unit identifier.
func (u *Unit) ID() string {
	return u.cfg.ID
}

// NumPixels returns the detector pixel count discovered at construction.
func (u *Unit) NumPixels() int {
	return u.numPixels
}

// GratingCount returns the number of installed gratings.
func (u *Unit) GratingCount() int {
	return u.gratingCount
}

// Grating returns the fixed description of one grating slot.
func (u *Unit) Grating(i int) GratingInfo {
	if i < 0 || i >= len(u.gratings) {
		return GratingInfo{}
	}
	return u.gratings[i]
}

// SlitPresent reports whether the slit at the given address is installed.
func (u *Unit) SlitPresent(addr int) bool {
	if addr < 0 || addr >= len(u.slitPresent) {
		return false
	}
	return u.slitPresent[addr]
}

// FlipperPresent reports whether the flip mirror at the given address is
// installed.
func (u *Unit) FlipperPresent(addr int) bool {
	if addr < 0 || addr >= len(u.flipperPresent) {
		return false
	}
	return u.flipperPresent[addr]
}

// Calibration returns a copy of the cached calibration curve.
func (u *Unit) Calibration() []float64 {
	out := make([]float64, len(u.calibration))
	copy(out, u.calibration)
	return out
}

// CachedInt returns the cached value of an integer channel.
func (u *Unit) CachedInt(addr int, ch Channel) (int, bool) {
	addr = clampAddr(addr, u.cache.addresses())
	return u.cache.getInt(addr, ch)
}

// CachedFloat returns the cached value of a float channel.
func (u *Unit) CachedFloat(addr int, ch Channel) (float64, bool) {
	addr = clampAddr(addr, u.cache.addresses())
	return u.cache.getFloat(addr, ch)
}

// Param is one cached parameter value, as exposed to diagnostics.
type Param struct {
	Channel Channel `json:"channel"`
	Address int     `json:"address"`
	Value   any     `json:"value"`
}

// Snapshot returns every cached scalar parameter in publication order.
func (u *Unit) Snapshot() []Param {
	var out []Param
	for _, ch := range channelOrder {
		for addr := 0; addr < u.cache.addresses(); addr++ {
			if v, ok := u.cache.getFloat(addr, ch); ok {
				out = append(out, Param{Channel: ch, Address: addr, Value: v})
				continue
			}
			if v, ok := u.cache.getInt(addr, ch); ok {
				out = append(out, Param{Channel: ch, Address: addr, Value: v})
			}
		}
	}
	return out
}

// Report writes a human-readable dump of the cached parameter set.
func (u *Unit) Report(w io.Writer) {
	fmt.Fprintf(w, "unit %s (device %d)\n", u.cfg.ID, u.cfg.DeviceIndex)
	fmt.Fprintf(w, "  pixels=%d gratings=%d\n", u.numPixels, u.gratingCount)
	for _, p := range u.Snapshot() {
		fmt.Fprintf(w, "  %s[%d] = %v\n", p.Channel, p.Address, p.Value)
	}
}

// Close releases the vendor session.
func (u *Unit) Close() error {
	return u.translate(u.session.Close(), "Close")
}

func (u *Unit) logDebug(msg string, keysAndValues ...any) {
	if u.log != nil {
		u.log.Debug(msg, keysAndValues...)
	}
}

func (u *Unit) logInfo(msg string, keysAndValues ...any) {
	if u.log != nil {
		u.log.Info(msg, keysAndValues...)
	}
}

func (u *Unit) logWarn(msg string, keysAndValues ...any) {
	if u.log != nil {
		u.log.Warn(msg, keysAndValues...)
	}
}

func (u *Unit) logError(msg string, keysAndValues ...any) {
	if u.log != nil {
		u.log.Error(msg, keysAndValues...)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
