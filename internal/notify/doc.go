// Package notify publishes operator alerts to the MQTT bus.
//
// The Notifier is registered as an event sink. Every event carrying a
// severity level is published to doorguard/core/alert/<level>, where
// phone gateways, sirens and wall panels subscribe. Delivery is best
// effort: publish failures are logged and never reach the access flow.
package notify
