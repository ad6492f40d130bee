// Package sim provides an in-memory spectrograph bench implementing
// spectro.Session and spectro.Detector.
//
// It exists so spectrad runs and integration tests execute without vendor
// hardware: mechanism moves are instantaneous, the calibration curve is a
// first-order dispersion model derived from the active grating's wavelength
// limits, and individual vendor calls can be made to fail on demand.
package sim
