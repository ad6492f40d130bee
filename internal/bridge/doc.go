// Package bridge connects spectrograph units to MQTT.
//
// It handles:
//   - Receiving write commands from clients and dispatching them to units
//   - Publishing parameter values and calibration curves as retained state
//   - Acknowledging commands with success or failure detail
//   - Health reporting and graceful shutdown
//
// Each unit gets a dedicated worker goroutine; the driver layer performs no
// internal locking, so the worker serialises every write and refresh for its
// unit. Commands for different units run concurrently.
package bridge
