// Package events carries access-control intents from the authentication
// workers to everything that presents or records them.
//
// Workers never touch display, notification or storage state directly.
// They Post an Event, and a single dispatcher goroutine hands each event to
// every registered Sink in order. Post never blocks: when the buffer is full
// the event is dropped and counted.
//
// Sinks in this repository:
//   - notify: MQTT alerts for events carrying a severity level
//   - api: WebSocket broadcast to operator dashboards
//   - audit: SQLite audit trail
//   - telemetry: InfluxDB points
//   - mqttio: retained session status topic
package events
