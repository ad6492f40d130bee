// Package spectro drives a multi-channel optical spectrograph behind an
// addressable parameter interface.
//
// One Unit controls one physical spectrograph. At construction the unit
// discovers which optical elements the attached device actually carries
// (slits, gratings, flip mirrors) and the detector's pixel geometry, then
// keeps a locally cached parameter set synchronised with live hardware
// state.
//
// # Parameter model
//
// Every readable or writable quantity is a Channel. Channels that select a
// physical sub-element (slit width, flip-mirror port) are addressed: a small
// integer address picks the slit or mirror slot. Unit-scoped channels
// (wavelength, active grating) ignore the address. Presence flags and
// per-grating wavelength limits are fixed at discovery and never change for
// the lifetime of the unit.
//
// # Consistency contract
//
// Writes are optimistic: the cache is staged before the hardware command is
// issued, so a failed command leaves a known cache/hardware divergence until
// the next successful refresh overwrites it. A refresh is all-or-nothing in
// the short-circuit sense: it aborts at the first hardware error, leaving
// every field past the failure point at its previous value.
//
// # Concurrency
//
// A Unit has no internal locking. All hardware calls are synchronous and
// blocking; the caller must serialise operations on a unit (the bridge runs
// one worker per unit for exactly this reason). Presence tables are
// read-only after discovery and safe for concurrent reads.
package spectro
