// Package influxdb provides InfluxDB connectivity for Spectra Core.
//
// It wraps the official influxdb-client-go v2 library with Spectra-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Spectrograph parameter telemetry (wavelength, slit widths, ports)
//   - Refresh cycle timings and outcomes
//   - Command acceptance and failure counts
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "optics-lab",
//	    Bucket: "spectra",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write parameter telemetry
//	client.WriteParameter("spg-red", "wavelength", 0, 632.8)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
