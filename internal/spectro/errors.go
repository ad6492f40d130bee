package spectro

import (
	"errors"
	"fmt"
)

// Domain errors for the spectrograph driver.
var (
	// ErrInitFailed is returned when construction fails fatally: the vendor
	// session could not be initialised or no device is attached. The unit is
	// never usable after this.
	ErrInitFailed = errors.New("spectro: initialisation failed")

	// ErrNoDevices is returned when the vendor library reports zero attached
	// spectrographs.
	ErrNoDevices = errors.New("spectro: no spectrographs attached")

	// ErrCommandFailed is returned when a single hardware write failed. The
	// local cache already holds the attempted value; the divergence persists
	// until the next successful refresh.
	ErrCommandFailed = errors.New("spectro: hardware command failed")

	// ErrRefreshAborted is returned when a status pull stopped at the first
	// hardware error. Fields past the failure point retain the values of the
	// last successful refresh.
	ErrRefreshAborted = errors.New("spectro: refresh aborted")

	// ErrUnknownChannel is returned when a wire name does not match any
	// channel.
	ErrUnknownChannel = errors.New("spectro: unknown channel")
)

// maxErrorDescription bounds vendor descriptions carried in errors and logs.
// Overlong descriptions are truncated, never rejected.
const maxErrorDescription = 100

// StatusError is a translated vendor failure: the raw code, the vendor's
// (bounded) description, and the name of the call that produced it.
type StatusError struct {
	Code        Code
	Context     string
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Context, int(e.Code), e.Description)
}
