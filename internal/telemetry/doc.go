// Package telemetry feeds access events into InfluxDB.
//
// Sink is registered on the event dispatcher and translates events into
// the auth_attempt, auth_commit, door_cycle and voice measurements written
// by the influxdb client. Writes are non-blocking and batched by the
// client, so a slow or absent time-series database never delays the
// dispatcher.
package telemetry
