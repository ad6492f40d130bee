package sim

import (
	"errors"
	"testing"

	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// The simulator must satisfy the driver interfaces.
var (
	_ spectro.Session  = (*Session)(nil)
	_ spectro.Detector = (*Detector)(nil)
)

func TestSession_RequiresInitialize(t *testing.T) {
	s := NewSession(DefaultBench())

	if _, code := s.NumberDevices(); code != spectro.CodeNotInitialized {
		t.Errorf("NumberDevices before Initialize = %d, want not-initialised", int(code))
	}

	if code := s.Initialize("bench.ini"); !code.OK() {
		t.Fatalf("Initialize() = %d", int(code))
	}
	n, code := s.NumberDevices()
	if !code.OK() || n != 1 {
		t.Errorf("NumberDevices() = %d, %d; want 1, success", n, int(code))
	}
}

func TestSession_WavelengthBoundedByActiveGrating(t *testing.T) {
	s := NewSession(DefaultBench())
	s.Initialize("bench.ini")

	if code := s.SetWavelength(0, 500); !code.OK() {
		t.Errorf("SetWavelength(500) = %d, want success", int(code))
	}
	if code := s.SetWavelength(0, 2000); code.OK() {
		t.Error("SetWavelength(2000) succeeded outside grating range")
	}

	// The second grating reaches further into the infrared.
	if code := s.SetGrating(0, 2); !code.OK() {
		t.Fatalf("SetGrating(2) = %d", int(code))
	}
	if code := s.SetWavelength(0, 1000); !code.OK() {
		t.Errorf("SetWavelength(1000) on grating 2 = %d, want success", int(code))
	}
}

func TestSession_CalibrationSpansActiveGrating(t *testing.T) {
	s := NewSession(DefaultBench())
	s.Initialize("bench.ini")

	curve, code := s.Calibration(0, 11)
	if !code.OK() {
		t.Fatalf("Calibration() = %d", int(code))
	}
	if curve[0] != 300 || curve[10] != 800 {
		t.Errorf("curve endpoints = %v, %v; want 300, 800", curve[0], curve[10])
	}
	for i := 1; i < len(curve); i++ {
		if curve[i] <= curve[i-1] {
			t.Fatalf("curve not monotonic at %d: %v <= %v", i, curve[i], curve[i-1])
		}
	}
}

func TestSession_FaultInjection(t *testing.T) {
	s := NewSession(DefaultBench())
	s.Initialize("bench.ini")

	s.FailWith("Wavelength", spectro.CodeCommunicationError)
	if _, code := s.Wavelength(0); code != spectro.CodeCommunicationError {
		t.Errorf("Wavelength with fault = %d, want communication error", int(code))
	}

	s.ClearFault("Wavelength")
	if _, code := s.Wavelength(0); !code.OK() {
		t.Errorf("Wavelength after ClearFault = %d, want success", int(code))
	}
}

func TestSession_DrivesUnitEndToEnd(t *testing.T) {
	bench := DefaultBench()
	bench.Flippers = []bool{true, false}
	session := NewSession(bench)

	u, err := spectro.NewUnit(spectro.Options{
		Config:   spectro.UnitConfig{ID: "sim-01", INIPath: "bench.ini"},
		Session:  session,
		Detector: NewDetector(bench),
	})
	if err != nil {
		t.Fatalf("NewUnit() error = %v", err)
	}

	if u.GratingCount() != 2 {
		t.Errorf("GratingCount() = %d, want 2", u.GratingCount())
	}
	if u.NumPixels() != bench.Pixels {
		t.Errorf("NumPixels() = %d, want %d", u.NumPixels(), bench.Pixels)
	}

	if err := u.WriteFloat(0, spectro.ChannelWavelength, 650); err != nil {
		t.Fatalf("WriteFloat(wavelength) error = %v", err)
	}
	if got, _ := u.CachedFloat(0, spectro.ChannelWavelength); got != 650 {
		t.Errorf("wavelength = %v, want 650", got)
	}

	// An out-of-range wavelength is a command failure, surfaced once.
	err = u.WriteFloat(0, spectro.ChannelWavelength, 5)
	if !errors.Is(err, spectro.ErrCommandFailed) {
		t.Errorf("WriteFloat(5) error = %v, want ErrCommandFailed", err)
	}
	// The refresh that follows the failed command restores the cache to the
	// hardware value.
	if got, _ := u.CachedFloat(0, spectro.ChannelWavelength); got != 650 {
		t.Errorf("wavelength after failed write = %v, want 650", got)
	}
}
