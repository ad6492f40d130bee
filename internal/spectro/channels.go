package spectro

import "fmt"

// Channel names one typed parameter of a unit. Channel values double as the
// wire names used in MQTT topics and API payloads.
type Channel string

// The addressable parameter surface of a unit.
const (
	// ChannelWavelength is the centre wavelength in nm (float, R/W,
	// unit-scoped).
	ChannelWavelength Channel = "wavelength"

	// ChannelMinWavelength is the lower display wavelength in nm (float, R).
	// After a refresh it equals the first calibration sample; during
	// discovery it carries the per-grating lower limit at the grating's
	// address.
	ChannelMinWavelength Channel = "min_wavelength"

	// ChannelMaxWavelength is the upper display wavelength in nm (float, R).
	ChannelMaxWavelength Channel = "max_wavelength"

	// ChannelCalibration is the per-pixel wavelength curve (float array, R).
	ChannelCalibration Channel = "calibration"

	// ChannelGrating is the active grating selector (int, R/W, unit-scoped).
	ChannelGrating Channel = "grating"

	// ChannelGratingCount is the number of installed gratings (int, R).
	ChannelGratingCount Channel = "grating_count"

	// ChannelGratingExists reports grating presence per address (int 0/1, R).
	ChannelGratingExists Channel = "grating_exists"

	// ChannelFlipperExists reports flip-mirror presence per address (int 0/1, R).
	ChannelFlipperExists Channel = "flipper_exists"

	// ChannelFlipperPort is the flip-mirror position per address (int, R/W).
	ChannelFlipperPort Channel = "flipper_port"

	// ChannelSlitExists reports slit presence per address (int 0/1, R).
	ChannelSlitExists Channel = "slit_exists"

	// ChannelSlitWidth is the slit width in µm per address (float, R/W).
	ChannelSlitWidth Channel = "slit_width"
)

// channelOrder fixes the emission order when a full address is republished,
// keeping callbacks deterministic for subscribers and tests.
var channelOrder = []Channel{
	ChannelWavelength,
	ChannelMinWavelength,
	ChannelMaxWavelength,
	ChannelGrating,
	ChannelGratingCount,
	ChannelGratingExists,
	ChannelFlipperExists,
	ChannelFlipperPort,
	ChannelSlitExists,
	ChannelSlitWidth,
}

// Channels returns all scalar channels in publication order. The calibration
// array channel is published separately and is not included.
func Channels() []Channel {
	out := make([]Channel, len(channelOrder))
	copy(out, channelOrder)
	return out
}

// ParseChannel validates a wire name received from the host framework.
func ParseChannel(s string) (Channel, error) {
	ch := Channel(s)
	if ch == ChannelCalibration {
		return ch, nil
	}
	for _, known := range channelOrder {
		if ch == known {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}

// Addressed reports whether the channel is scoped to a per-element address
// rather than to the whole unit.
func (c Channel) Addressed() bool {
	switch c {
	case ChannelGratingExists, ChannelFlipperExists, ChannelFlipperPort,
		ChannelSlitExists, ChannelSlitWidth:
		return true
	default:
		return false
	}
}

// Writable reports whether the host framework may write the channel.
func (c Channel) Writable() bool {
	switch c {
	case ChannelWavelength, ChannelGrating, ChannelFlipperPort, ChannelSlitWidth:
		return true
	default:
		return false
	}
}

// Float reports whether the channel carries a float value. Non-float scalar
// channels carry ints.
func (c Channel) Float() bool {
	switch c {
	case ChannelWavelength, ChannelMinWavelength, ChannelMaxWavelength,
		ChannelSlitWidth:
		return true
	default:
		return false
	}
}
