package spectro

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// fakeSession is a scripted in-memory vendor session. Failures are injected
// per method name via the fail map; every hardware call is recorded so tests
// can assert that skipped commands issue no I/O.
type fakeSession struct {
	devices  int
	pixels   int
	slits    []bool
	gratings int
	limits   map[int][2]float64
	flippers []bool

	grating    int
	wavelength float64
	slitWidths map[int]float64
	ports      map[int]Port

	fail  map[string]Code
	calls []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		devices:    1,
		pixels:     16,
		slits:      []bool{true, false, false, false},
		gratings:   2,
		limits:     map[int][2]float64{1: {300, 800}, 2: {500, 1100}},
		flippers:   []bool{false, false},
		grating:    1,
		wavelength: 500,
		slitWidths: map[int]float64{1: 100},
		ports:      map[int]Port{},
		fail:       map[string]Code{},
	}
}

func (f *fakeSession) record(name string) Code {
	f.calls = append(f.calls, name)
	if code, ok := f.fail[name]; ok {
		return code
	}
	return CodeSuccess
}

func (f *fakeSession) Initialize(string) Code { return f.record("Initialize") }

func (f *fakeSession) NumberDevices() (int, Code) {
	return f.devices, f.record("NumberDevices")
}

func (f *fakeSession) SetNumberPixels(_, pixels int) Code {
	code := f.record("SetNumberPixels")
	if code.OK() {
		f.pixels = pixels
	}
	return code
}

func (f *fakeSession) SetPixelWidth(int, float64) Code { return f.record("SetPixelWidth") }

func (f *fakeSession) NumberPixels(int) (int, Code) {
	return f.pixels, f.record("NumberPixels")
}

func (f *fakeSession) SlitPresent(_, slit int) (bool, Code) {
	return f.slits[slit-1], f.record("SlitPresent")
}

func (f *fakeSession) NumberGratings(int) (int, Code) {
	return f.gratings, f.record("NumberGratings")
}

func (f *fakeSession) WavelengthLimits(_, grating int) (float64, float64, Code) {
	lim := f.limits[grating]
	return lim[0], lim[1], f.record("WavelengthLimits")
}

func (f *fakeSession) FlipperPresent(_, flipper int) (bool, Code) {
	return f.flippers[flipper-1], f.record("FlipperPresent")
}

func (f *fakeSession) Grating(int) (int, Code) {
	return f.grating, f.record("Grating")
}

func (f *fakeSession) SetGrating(_, grating int) Code {
	code := f.record("SetGrating")
	if code.OK() {
		f.grating = grating
	}
	return code
}

func (f *fakeSession) Wavelength(int) (float64, Code) {
	return f.wavelength, f.record("Wavelength")
}

func (f *fakeSession) SetWavelength(_ int, wavelength float64) Code {
	code := f.record("SetWavelength")
	if code.OK() {
		f.wavelength = wavelength
	}
	return code
}

func (f *fakeSession) SlitWidth(_, slit int) (float64, Code) {
	return f.slitWidths[slit], f.record("SlitWidth")
}

func (f *fakeSession) SetSlitWidth(_, slit int, width float64) Code {
	code := f.record("SetSlitWidth")
	if code.OK() {
		f.slitWidths[slit] = width
	}
	return code
}

func (f *fakeSession) FlipperPort(_, flipper int) (Port, Code) {
	return f.ports[flipper], f.record("FlipperPort")
}

func (f *fakeSession) SetFlipperPort(_, flipper int, port Port) Code {
	code := f.record("SetFlipperPort")
	if code.OK() {
		f.ports[flipper] = port
	}
	return code
}

func (f *fakeSession) Calibration(_, pixels int) ([]float64, Code) {
	code := f.record("Calibration")
	curve := make([]float64, pixels)
	if pixels > 1 {
		lim := f.limits[f.grating]
		step := (lim[1] - lim[0]) / float64(pixels-1)
		for i := range curve {
			curve[i] = lim[0] + step*float64(i)
		}
	}
	return curve, code
}

func (f *fakeSession) Close() Code { return f.record("Close") }

// callCount counts recorded invocations of one session method.
func (f *fakeSession) callCount(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fakeDetector struct {
	width, height int
	err           error
}

func (f *fakeDetector) Geometry() (int, int, error) {
	return f.width, f.height, f.err
}

func (f *fakeDetector) PixelSize() (float64, float64, error) {
	return 13.5, 13.5, f.err
}

// published is one scalar update captured by the fake publisher.
type published struct {
	addr  int
	ch    Channel
	value any
}

type fakePublisher struct {
	updates []published
	curves  [][]float64
}

func (p *fakePublisher) PublishInt(addr int, ch Channel, value int) {
	p.updates = append(p.updates, published{addr, ch, value})
}

func (p *fakePublisher) PublishFloat(addr int, ch Channel, value float64) {
	p.updates = append(p.updates, published{addr, ch, value})
}

func (p *fakePublisher) PublishFloatArray(_ Channel, values []float64) {
	curve := make([]float64, len(values))
	copy(curve, values)
	p.curves = append(p.curves, curve)
}

func newTestUnit(t *testing.T, session *fakeSession, pub Publisher) *Unit {
	t.Helper()
	u, err := NewUnit(Options{
		Config:    UnitConfig{ID: "spg-01", DeviceIndex: 0, INIPath: "bench.ini"},
		Session:   session,
		Detector:  &fakeDetector{width: 16, height: 4},
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("NewUnit() error = %v", err)
	}
	return u
}

func TestNewUnit_DiscoversCapabilities(t *testing.T) {
	// Bench per the reference scenario: 2 gratings, 1 slit, 0 mirrors.
	s := newFakeSession()
	u := newTestUnit(t, s, nil)

	if got, _ := u.CachedInt(0, ChannelGratingCount); got != 2 {
		t.Errorf("grating_count = %d, want 2", got)
	}
	for g, want := range []int{1, 1, 0} {
		if got, _ := u.CachedInt(g, ChannelGratingExists); got != want {
			t.Errorf("grating_exists[%d] = %d, want %d", g, got, want)
		}
	}
	if !u.SlitPresent(0) {
		t.Error("SlitPresent(0) = false, want true")
	}
	for addr := 1; addr < MaxSlits; addr++ {
		if u.SlitPresent(addr) {
			t.Errorf("SlitPresent(%d) = true, want false", addr)
		}
	}
	for addr := 0; addr < MaxFlippers; addr++ {
		if u.FlipperPresent(addr) {
			t.Errorf("FlipperPresent(%d) = true, want false", addr)
		}
	}
	if u.NumPixels() != 16 {
		t.Errorf("NumPixels() = %d, want 16", u.NumPixels())
	}
	if g := u.Grating(0); !g.Exists || g.MinWavelength != 300 || g.MaxWavelength != 800 {
		t.Errorf("Grating(0) = %+v, want exists 300..800", g)
	}
}

func TestNewUnit_InitializeFailureIsFatal(t *testing.T) {
	s := newFakeSession()
	s.fail["Initialize"] = CodeCommunicationError

	_, err := NewUnit(Options{
		Config:   UnitConfig{ID: "spg-01"},
		Session:  s,
		Detector: &fakeDetector{width: 16, height: 4},
	})
	if !errors.Is(err, ErrInitFailed) {
		t.Fatalf("NewUnit() error = %v, want ErrInitFailed", err)
	}
	// Nothing beyond the failed call may have been attempted.
	if s.callCount("NumberDevices") != 0 {
		t.Error("NumberDevices was called after a failed Initialize")
	}
}

func TestNewUnit_NoDevicesIsFatal(t *testing.T) {
	s := newFakeSession()
	s.devices = 0

	_, err := NewUnit(Options{
		Config:   UnitConfig{ID: "spg-01"},
		Session:  s,
		Detector: &fakeDetector{width: 16, height: 4},
	})
	if !errors.Is(err, ErrNoDevices) {
		t.Fatalf("NewUnit() error = %v, want ErrNoDevices", err)
	}
}

func TestNewUnit_ProbeFailureDegradesCapability(t *testing.T) {
	s := newFakeSession()
	s.fail["SlitPresent"] = CodeNotAvailable

	u := newTestUnit(t, s, nil)

	for addr := 0; addr < MaxSlits; addr++ {
		if u.SlitPresent(addr) {
			t.Errorf("SlitPresent(%d) = true after failed probe, want false", addr)
		}
		if got, _ := u.CachedInt(addr, ChannelSlitExists); got != 0 {
			t.Errorf("slit_exists[%d] = %d, want 0", addr, got)
		}
	}
}

func TestWriteFloat_RoundTrip(t *testing.T) {
	s := newFakeSession()
	u := newTestUnit(t, s, nil)

	if err := u.WriteFloat(0, ChannelSlitWidth, 250); err != nil {
		t.Fatalf("WriteFloat() error = %v", err)
	}
	// The write triggers an unconditional refresh, so the cache must hold
	// the value the hardware accepted.
	if got, _ := u.CachedFloat(0, ChannelSlitWidth); got != 250 {
		t.Errorf("slit_width[0] = %v, want 250", got)
	}
	if s.callCount("SetSlitWidth") != 1 {
		t.Errorf("SetSlitWidth called %d times, want 1", s.callCount("SetSlitWidth"))
	}
}

func TestWriteFloat_AbsentSlitSkipsHardware(t *testing.T) {
	s := newFakeSession()
	u := newTestUnit(t, s, nil)

	if err := u.WriteFloat(2, ChannelSlitWidth, 80); err != nil {
		t.Fatalf("WriteFloat() to absent slit error = %v, want nil", err)
	}
	if s.callCount("SetSlitWidth") != 0 {
		t.Error("SetSlitWidth was called for an absent slit")
	}
	if got, _ := u.CachedInt(2, ChannelSlitExists); got != 0 {
		t.Errorf("slit_exists[2] = %d, want 0", got)
	}
	// The optimistic stage went through; the subsequent refresh rewrites the
	// width of absent slits to zero. Documented divergence handling, not a
	// bug.
	if got, _ := u.CachedFloat(2, ChannelSlitWidth); got != 0 {
		t.Errorf("slit_width[2] = %v after refresh, want 0", got)
	}
}

func TestWriteFloat_CommandFailureKeepsOptimisticCache(t *testing.T) {
	s := newFakeSession()
	s.fail["SetWavelength"] = CodeCommunicationError
	// Freeze the refresh as well so the staged value survives for the
	// divergence assertion.
	s.fail["Grating"] = CodeCommunicationError
	u := newTestUnit(t, s, nil)

	err := u.WriteFloat(0, ChannelWavelength, 632.8)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("WriteFloat() error = %v, want ErrCommandFailed", err)
	}
	if got, _ := u.CachedFloat(0, ChannelWavelength); got != 632.8 {
		t.Errorf("wavelength cache = %v, want staged 632.8 despite failed command", got)
	}
}

func TestWriteInt_NegativeAddressClampsToZero(t *testing.T) {
	s := newFakeSession()
	s.flippers = []bool{true, false}
	u := newTestUnit(t, s, nil)

	before := s.callCount("SetFlipperPort")
	if err := u.WriteInt(-1, ChannelFlipperPort, int(PortB)); err != nil {
		t.Fatalf("WriteInt() error = %v", err)
	}
	if s.callCount("SetFlipperPort") != before+1 {
		t.Fatal("SetFlipperPort not called; address -1 should behave as address 0")
	}
	if s.ports[1] != PortB {
		t.Errorf("flipper 1 port = %v, want PortB", s.ports[1])
	}
	if got, _ := u.CachedInt(0, ChannelFlipperPort); got != int(PortB) {
		t.Errorf("flipper_port[0] = %d, want %d", got, int(PortB))
	}
}

func TestWriteInt_AddressBeyondFlipperTableIsNoOp(t *testing.T) {
	// Addresses 2 and 3 clamp inside the cache but sit past the two-slot
	// flipper table; the write must skip the hardware, not fault.
	s := newFakeSession()
	s.flippers = []bool{true, true}
	u := newTestUnit(t, s, nil)

	for _, addr := range []int{2, 3} {
		if err := u.WriteInt(addr, ChannelFlipperPort, int(PortB)); err != nil {
			t.Fatalf("WriteInt(%d) error = %v, want nil", addr, err)
		}
	}
	if s.callCount("SetFlipperPort") != 0 {
		t.Errorf("SetFlipperPort called %d times for out-of-table addresses, want 0",
			s.callCount("SetFlipperPort"))
	}
}

func TestWriteInt_UnknownChannelIsCacheOnly(t *testing.T) {
	s := newFakeSession()
	u := newTestUnit(t, s, nil)

	setCalls := len(s.calls)
	if err := u.WriteInt(0, Channel("bogus"), 7); err != nil {
		t.Fatalf("WriteInt() error = %v, want nil", err)
	}
	for _, c := range s.calls[setCalls:] {
		if strings.HasPrefix(c, "Set") {
			t.Fatalf("unexpected hardware command %q for unknown channel", c)
		}
	}
	if got, _ := u.CachedInt(0, Channel("bogus")); got != 7 {
		t.Errorf("cache = %d, want 7", got)
	}
}

func TestRefresh_ShortCircuitLeavesLaterFieldsUntouched(t *testing.T) {
	s := newFakeSession()
	s.flippers = []bool{true, false}
	u := newTestUnit(t, s, nil)

	wantWavelength, _ := u.CachedFloat(0, ChannelWavelength)
	wantGrating, _ := u.CachedInt(0, ChannelGrating)
	wantWidth, _ := u.CachedFloat(0, ChannelSlitWidth)
	wantCurve := u.Calibration()

	// Move live state, then make the very first refresh step fail.
	s.wavelength = 999
	s.grating = 2
	s.slitWidths[1] = 42
	s.fail["FlipperPort"] = CodeCommunicationError

	err := u.Refresh()
	if !errors.Is(err, ErrRefreshAborted) {
		t.Fatalf("Refresh() error = %v, want ErrRefreshAborted", err)
	}
	if s.callCount("Grating") != 1 || s.callCount("Wavelength") != 1 {
		t.Error("refresh continued past the failed flipper fetch")
	}

	if got, _ := u.CachedFloat(0, ChannelWavelength); got != wantWavelength {
		t.Errorf("wavelength = %v, want stale %v", got, wantWavelength)
	}
	if got, _ := u.CachedInt(0, ChannelGrating); got != wantGrating {
		t.Errorf("grating = %d, want stale %d", got, wantGrating)
	}
	if got, _ := u.CachedFloat(0, ChannelSlitWidth); got != wantWidth {
		t.Errorf("slit_width[0] = %v, want stale %v", got, wantWidth)
	}
	for i, v := range u.Calibration() {
		if v != wantCurve[i] {
			t.Fatalf("calibration[%d] = %v, want stale %v", i, v, wantCurve[i])
		}
	}
}

func TestRefresh_DisplayLimitsAreCurveEndpoints(t *testing.T) {
	s := newFakeSession()
	u := newTestUnit(t, s, nil)

	if err := u.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	curve := u.Calibration()
	minW, _ := u.CachedFloat(0, ChannelMinWavelength)
	maxW, _ := u.CachedFloat(0, ChannelMaxWavelength)
	if minW != curve[0] {
		t.Errorf("min_wavelength = %v, want first calibration sample %v", minW, curve[0])
	}
	if maxW != curve[len(curve)-1] {
		t.Errorf("max_wavelength = %v, want last calibration sample %v", maxW, curve[len(curve)-1])
	}
}

func TestRefresh_RepublishesCalibrationAsOneArray(t *testing.T) {
	s := newFakeSession()
	pub := &fakePublisher{}
	u := newTestUnit(t, s, pub)

	curvesBefore := len(pub.curves)
	if err := u.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(pub.curves) != curvesBefore+1 {
		t.Fatalf("calibration published %d times, want %d",
			len(pub.curves), curvesBefore+1)
	}
	last := pub.curves[len(pub.curves)-1]
	if len(last) != u.NumPixels() {
		t.Errorf("published curve length = %d, want %d", len(last), u.NumPixels())
	}
}

func TestPresenceFlagsNeverChange(t *testing.T) {
	s := newFakeSession()
	s.flippers = []bool{true, false}
	u := newTestUnit(t, s, nil)

	before := make([]bool, MaxSlits)
	for i := range before {
		before[i] = u.SlitPresent(i)
	}

	// Exercise the full write surface, including failures.
	s.fail["SetSlitWidth"] = CodeP2Invalid
	_ = u.WriteFloat(0, ChannelSlitWidth, 10)
	_ = u.WriteFloat(0, ChannelWavelength, 700)
	_ = u.WriteInt(0, ChannelGrating, 2)
	_ = u.WriteInt(0, ChannelFlipperPort, int(PortB))
	_ = u.Refresh()

	for i := range before {
		if u.SlitPresent(i) != before[i] {
			t.Errorf("SlitPresent(%d) changed after writes", i)
		}
	}
	if !u.FlipperPresent(0) || u.FlipperPresent(1) {
		t.Error("flipper presence changed after writes")
	}
}

func TestReport_ListsCachedParameters(t *testing.T) {
	s := newFakeSession()
	u := newTestUnit(t, s, nil)

	var buf bytes.Buffer
	u.Report(&buf)
	out := buf.String()
	for _, want := range []string{"spg-01", "grating_count", "slit_exists"} {
		if !strings.Contains(out, want) {
			t.Errorf("Report() output missing %q:\n%s", want, out)
		}
	}
}
