// Package influxdb provides InfluxDB connectivity for Doorguard telemetry.
//
// It wraps influxdb-client-go v2 with a non-blocking batched write API and
// typed helpers for the door's measurements:
//
//   - auth_attempt: per-factor outcomes (success, failure, timeout, ...)
//   - auth_commit: winning factor and session duration
//   - door_cycle: lock relay transitions
//   - voice: voice gate emitted/suppressed/dropped counts
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthAttempt("any", "rfid", "success", time.Now())
//
// Telemetry is optional. A disabled or unreachable InfluxDB never affects
// authentication; writes on a disconnected client are dropped.
package influxdb
