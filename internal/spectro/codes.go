package spectro

import "fmt"

// Code is a raw status code as returned by the vendor spectrograph library.
// CodeSuccess is the only value that indicates success; everything else is a
// failure whose meaning is looked up via Description.
type Code int

// Status codes used by the vendor library.
const (
	CodeCommunicationError Code = 20201
	CodeSuccess            Code = 20202
	CodeP1Invalid          Code = 20266
	CodeP2Invalid          Code = 20267
	CodeP3Invalid          Code = 20268
	CodeP4Invalid          Code = 20269
	CodeNotInitialized     Code = 20275
	CodeNotAvailable       Code = 20292
)

// codeDescriptions mirrors the vendor library's description lookup table.
var codeDescriptions = map[Code]string{
	CodeCommunicationError: "communication error with the spectrograph",
	CodeSuccess:            "success",
	CodeP1Invalid:          "parameter 1 invalid",
	CodeP2Invalid:          "parameter 2 invalid",
	CodeP3Invalid:          "parameter 3 invalid",
	CodeP4Invalid:          "parameter 4 invalid",
	CodeNotInitialized:     "spectrograph library not initialised",
	CodeNotAvailable:       "requested feature not available on this device",
}

// OK reports whether the code indicates success.
func (c Code) OK() bool {
	return c == CodeSuccess
}

// Description returns the vendor description for the code. Unknown codes
// produce a generic description rather than an error.
func (c Code) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("unrecognised status code %d", int(c))
}
