package sim

import (
	"sync"

	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// GratingRange is the usable wavelength range of one simulated grating.
type GratingRange struct {
	Min float64
	Max float64
}

// Bench describes the optical elements of a simulated spectrograph.
type Bench struct {
	// Slits marks which of the slit slots are populated. Length at most
	// spectro.MaxSlits.
	Slits []bool

	// Gratings lists the installed gratings in turret order.
	Gratings []GratingRange

	// Flippers marks which flip mirrors are installed.
	Flippers []bool

	// Pixels is the detector width in pixels.
	Pixels int

	// PixelSizeUM is the physical pixel size in micrometres.
	PixelSizeUM float64
}

// DefaultBench returns a bench matching a common factory configuration: one
// input slit, two gratings, no flip mirrors, a 1024-pixel line detector.
func DefaultBench() Bench {
	return Bench{
		Slits:       []bool{true, false, false, false},
		Gratings:    []GratingRange{{Min: 300, Max: 800}, {Min: 500, Max: 1100}},
		Flippers:    []bool{false, false},
		Pixels:      1024,
		PixelSizeUM: 26,
	}
}

// Session is a simulated vendor session. Safe for concurrent use; the mutex
// stands in for the hardware's one-command-at-a-time serial link.
type Session struct {
	mu sync.Mutex

	bench       Bench
	initialized bool

	grating    int // 1-based, like the vendor library
	wavelength float64
	slitWidths []float64
	ports      []spectro.Port
	numPixels  int

	faults map[string]spectro.Code
}

// NewSession creates a simulated session for the given bench.
func NewSession(bench Bench) *Session {
	return &Session{
		bench:      bench,
		grating:    1,
		slitWidths: make([]float64, len(bench.Slits)),
		ports:      make([]spectro.Port, len(bench.Flippers)),
		numPixels:  bench.Pixels,
		faults:     make(map[string]spectro.Code),
	}
}

// FailWith makes every subsequent call to the named session method return
// the given code. Used by tests to exercise failure paths.
func (s *Session) FailWith(method string, code spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = code
}

// ClearFault removes an injected fault.
func (s *Session) ClearFault(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, method)
}

// fault returns the injected code for a method, or success.
func (s *Session) fault(method string) spectro.Code {
	if code, ok := s.faults[method]; ok {
		return code
	}
	return spectro.CodeSuccess
}

func (s *Session) Initialize(string) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("Initialize"); !code.OK() {
		return code
	}
	s.initialized = true
	return spectro.CodeSuccess
}

func (s *Session) NumberDevices() (int, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("NumberDevices"); !code.OK() {
		return 0, code
	}
	if !s.initialized {
		return 0, spectro.CodeNotInitialized
	}
	return 1, spectro.CodeSuccess
}

func (s *Session) SetNumberPixels(_, pixels int) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SetNumberPixels"); !code.OK() {
		return code
	}
	if pixels < 0 {
		return spectro.CodeP2Invalid
	}
	s.numPixels = pixels
	return spectro.CodeSuccess
}

func (s *Session) SetPixelWidth(_ int, width float64) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SetPixelWidth"); !code.OK() {
		return code
	}
	if width <= 0 {
		return spectro.CodeP2Invalid
	}
	s.bench.PixelSizeUM = width
	return spectro.CodeSuccess
}

func (s *Session) NumberPixels(int) (int, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("NumberPixels"); !code.OK() {
		return 0, code
	}
	return s.numPixels, spectro.CodeSuccess
}

func (s *Session) SlitPresent(_, slit int) (bool, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SlitPresent"); !code.OK() {
		return false, code
	}
	if slit < 1 || slit > len(s.bench.Slits) {
		return false, spectro.CodeSuccess
	}
	return s.bench.Slits[slit-1], spectro.CodeSuccess
}

func (s *Session) NumberGratings(int) (int, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("NumberGratings"); !code.OK() {
		return 0, code
	}
	return len(s.bench.Gratings), spectro.CodeSuccess
}

func (s *Session) WavelengthLimits(_, grating int) (float64, float64, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("WavelengthLimits"); !code.OK() {
		return 0, 0, code
	}
	if grating < 1 || grating > len(s.bench.Gratings) {
		return 0, 0, spectro.CodeP2Invalid
	}
	g := s.bench.Gratings[grating-1]
	return g.Min, g.Max, spectro.CodeSuccess
}

func (s *Session) FlipperPresent(_, flipper int) (bool, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("FlipperPresent"); !code.OK() {
		return false, code
	}
	if flipper < 1 || flipper > len(s.bench.Flippers) {
		return false, spectro.CodeSuccess
	}
	return s.bench.Flippers[flipper-1], spectro.CodeSuccess
}

func (s *Session) Grating(int) (int, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("Grating"); !code.OK() {
		return 0, code
	}
	return s.grating, spectro.CodeSuccess
}

func (s *Session) SetGrating(_, grating int) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SetGrating"); !code.OK() {
		return code
	}
	if grating < 1 || grating > len(s.bench.Gratings) {
		return spectro.CodeP2Invalid
	}
	s.grating = grating
	return spectro.CodeSuccess
}

func (s *Session) Wavelength(int) (float64, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("Wavelength"); !code.OK() {
		return 0, code
	}
	return s.wavelength, spectro.CodeSuccess
}

func (s *Session) SetWavelength(_ int, wavelength float64) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SetWavelength"); !code.OK() {
		return code
	}
	g := s.activeRange()
	if wavelength < g.Min || wavelength > g.Max {
		return spectro.CodeP2Invalid
	}
	s.wavelength = wavelength
	return spectro.CodeSuccess
}

func (s *Session) SlitWidth(_, slit int) (float64, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SlitWidth"); !code.OK() {
		return 0, code
	}
	if slit < 1 || slit > len(s.slitWidths) {
		return 0, spectro.CodeP2Invalid
	}
	return s.slitWidths[slit-1], spectro.CodeSuccess
}

func (s *Session) SetSlitWidth(_, slit int, width float64) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SetSlitWidth"); !code.OK() {
		return code
	}
	if slit < 1 || slit > len(s.slitWidths) {
		return spectro.CodeP2Invalid
	}
	if width < 0 {
		return spectro.CodeP3Invalid
	}
	s.slitWidths[slit-1] = width
	return spectro.CodeSuccess
}

func (s *Session) FlipperPort(_, flipper int) (spectro.Port, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("FlipperPort"); !code.OK() {
		return 0, code
	}
	if flipper < 1 || flipper > len(s.ports) {
		return 0, spectro.CodeP2Invalid
	}
	return s.ports[flipper-1], spectro.CodeSuccess
}

func (s *Session) SetFlipperPort(_, flipper int, port spectro.Port) spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("SetFlipperPort"); !code.OK() {
		return code
	}
	if flipper < 1 || flipper > len(s.ports) {
		return spectro.CodeP2Invalid
	}
	if port != spectro.PortA && port != spectro.PortB {
		return spectro.CodeP3Invalid
	}
	s.ports[flipper-1] = port
	return spectro.CodeSuccess
}

func (s *Session) Calibration(_, pixels int) ([]float64, spectro.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("Calibration"); !code.OK() {
		return nil, code
	}
	curve := make([]float64, pixels)
	if pixels > 1 {
		g := s.activeRange()
		step := (g.Max - g.Min) / float64(pixels-1)
		for i := range curve {
			curve[i] = g.Min + step*float64(i)
		}
	}
	return curve, spectro.CodeSuccess
}

func (s *Session) Close() spectro.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.fault("Close"); !code.OK() {
		return code
	}
	s.initialized = false
	return spectro.CodeSuccess
}

// activeRange returns the wavelength range of the active grating, or a zero
// range when the turret is empty. Callers hold the mutex.
func (s *Session) activeRange() GratingRange {
	if s.grating < 1 || s.grating > len(s.bench.Gratings) {
		return GratingRange{}
	}
	return s.bench.Gratings[s.grating-1]
}

// Detector is the simulated camera subsystem paired with a bench.
type Detector struct {
	bench Bench
}

// NewDetector creates a detector reporting the bench's pixel geometry.
func NewDetector(bench Bench) *Detector {
	return &Detector{bench: bench}
}

// Geometry returns the sensor size in pixels. Simulated line detectors are
// one row high when the bench does not say otherwise.
func (d *Detector) Geometry() (int, int, error) {
	return d.bench.Pixels, 1, nil
}

// PixelSize returns the physical pixel size in micrometres.
func (d *Detector) PixelSize() (float64, float64, error) {
	return d.bench.PixelSizeUM, d.bench.PixelSizeUM, nil
}
