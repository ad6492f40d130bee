package mqtt

import "fmt"

// Topic prefixes for the Spectra MQTT hierarchy.
//
// All topics use the flat scheme: spectra/{category}/{unit}[/{channel}[/{address}]]
const (
	// TopicPrefix is the base for all Spectra topics.
	TopicPrefix = "spectra"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "spectra/system"
)

// Topics provides builders for Spectra MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("spg-red", "wavelength", 0)
//	// Returns: "spectra/state/spg-red/wavelength/0"
type Topics struct{}

// State returns the topic for a published parameter value.
//
// Example: spectra/state/spg-red/wavelength/0
func (Topics) State(unitID, channel string, address int) string {
	return fmt.Sprintf("%s/state/%s/%s/%d", TopicPrefix, unitID, channel, address)
}

// Calibration returns the topic for a unit's calibration curve.
//
// Example: spectra/state/spg-red/calibration
func (Topics) Calibration(unitID string) string {
	return fmt.Sprintf("%s/state/%s/calibration", TopicPrefix, unitID)
}

// Command returns the topic carrying write commands for a unit.
//
// Example: spectra/command/spg-red
func (Topics) Command(unitID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, unitID)
}

// Ack returns the topic for command acknowledgements from a unit.
//
// Example: spectra/ack/spg-red
func (Topics) Ack(unitID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, unitID)
}

// Health returns the topic for a service's health status.
//
// Example: spectra/health/spectrad
func (Topics) Health(serviceID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, serviceID)
}

// SystemStatus returns the daemon status topic.
//
// Example: spectra/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching command topics for every unit.
//
// Pattern: spectra/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllStates returns a pattern matching every published parameter value.
//
// Pattern: spectra/state/#
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/#", TopicPrefix)
}

// UnitStates returns a pattern matching every published value for one unit.
//
// Pattern: spectra/state/spg-red/#
func (Topics) UnitStates(unitID string) string {
	return fmt.Sprintf("%s/state/%s/#", TopicPrefix, unitID)
}

// AllHealth returns a pattern matching health topics for every service.
//
// Pattern: spectra/health/+
func (Topics) AllHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Spectra topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: spectra/#
func (Topics) AllTopics() string {
	return "spectra/#"
}
