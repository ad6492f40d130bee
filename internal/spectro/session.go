package spectro

// Documented hardware limits of the supported device family. Discovered
// capability counts are bounded by these maxima; a device reporting more is
// clamped and logged rather than silently truncated.
const (
	// MaxSlits is the number of slit slots a unit can carry.
	MaxSlits = 4

	// MaxGratings is the number of gratings a turret can hold.
	MaxGratings = 3

	// MaxFlippers is the number of flip-mirror beam routers a unit can carry.
	MaxFlippers = 2

	// MaxAddresses is the size of the per-unit address space. Addresses are
	// always clamped to [0, MaxAddresses).
	MaxAddresses = 4
)

// Port identifies which output a flip mirror routes the beam to.
type Port int

// Flip-mirror port positions.
const (
	PortA Port = iota
	PortB
)

// Session is the vendor spectrograph library, scoped to one process-wide
// handle. Methods take the device index so a single session can serve
// several attached units, matching the vendor API. Every method returns a
// raw vendor Code; translation to errors happens in exactly one place, the
// unit's status translator.
//
// Element indices (slit, grating, flipper) are 1-based on the wire, as in
// the vendor library. Address-to-index conversion is the unit's job.
type Session interface {
	// Initialize opens the vendor library session using the configuration
	// file at iniPath. Must succeed before any other call.
	Initialize(iniPath string) Code

	// NumberDevices returns the count of attached spectrographs.
	NumberDevices() (int, Code)

	// SetNumberPixels propagates the attached detector's pixel count into
	// the library's per-pixel calibration sizing.
	SetNumberPixels(device, pixels int) Code

	// SetPixelWidth propagates the detector pixel width in micrometres.
	SetPixelWidth(device int, width float64) Code

	// NumberPixels returns the pixel count the library will use for
	// calibration curves.
	NumberPixels(device int) (int, Code)

	// SlitPresent reports whether the given slit slot is populated.
	SlitPresent(device, slit int) (bool, Code)

	// NumberGratings returns how many gratings are installed.
	NumberGratings(device int) (int, Code)

	// WavelengthLimits returns the usable wavelength range of a grating in
	// nanometres.
	WavelengthLimits(device, grating int) (min, max float64, code Code)

	// FlipperPresent reports whether the given flip mirror is installed.
	FlipperPresent(device, flipper int) (bool, Code)

	// Grating returns the currently selected grating.
	Grating(device int) (int, Code)

	// SetGrating rotates the turret to the given grating.
	SetGrating(device, grating int) Code

	// Wavelength returns the current centre wavelength in nanometres.
	Wavelength(device int) (float64, Code)

	// SetWavelength drives the wavelength mechanism. Blocks until the move
	// completes or fails.
	SetWavelength(device int, wavelength float64) Code

	// SlitWidth returns the current width of a slit in micrometres.
	SlitWidth(device, slit int) (float64, Code)

	// SetSlitWidth drives a slit to the requested width.
	SetSlitWidth(device, slit int, width float64) Code

	// FlipperPort returns the current position of a flip mirror.
	FlipperPort(device, flipper int) (Port, Code)

	// SetFlipperPort moves a flip mirror to the requested port.
	SetFlipperPort(device, flipper int, port Port) Code

	// Calibration returns the wavelength of each detector pixel, length
	// pixels, in one call.
	Calibration(device, pixels int) ([]float64, Code)

	// Close releases the vendor session.
	Close() Code
}

// Detector is the already-initialised camera subsystem attached to the
// spectrograph. It is queried once, during discovery, for pixel geometry.
type Detector interface {
	// Geometry returns the sensor size in pixels.
	Geometry() (width, height int, err error)

	// PixelSize returns the physical pixel size in micrometres.
	PixelSize() (x, y float64, err error)
}
