package mqtt

import "fmt"

// Topic prefixes for the Doorguard MQTT hierarchy.
//
// Hardware bridges (camera/recogniser sidecar, fingerprint module, RFID
// reader, relay board, buzzer, TTS speaker, kiosk keypad) publish on the
// sensor and input branches and consume the actuator branch. The core
// publishes its own status, events and alerts under core.
const (
	// TopicRoot is the base of every Doorguard topic.
	TopicRoot = "doorguard"

	// TopicPrefixSensor carries raw readings from sensor bridges.
	TopicPrefixSensor = "doorguard/sensor"

	// TopicPrefixActuator carries commands to output devices.
	TopicPrefixActuator = "doorguard/actuator"

	// TopicPrefixInput carries operator input from kiosk keypads and hotkeys.
	TopicPrefixInput = "doorguard/input"

	// TopicPrefixCore is the base for topics the core publishes.
	TopicPrefixCore = "doorguard/core"

	// TopicPrefixAdmin carries the admin-panel handoff.
	TopicPrefixAdmin = "doorguard/admin"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "doorguard/system"
)

// Topics provides builders for Doorguard MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Sensor("fingerprint") // "doorguard/sensor/fingerprint"
type Topics struct{}

// Sensor returns the reading topic for a sensor bridge.
//
// Example: doorguard/sensor/face
func (Topics) Sensor(sensor string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixSensor, sensor)
}

// Actuator returns the command topic for an output device.
//
// Example: doorguard/actuator/lock/set
func (Topics) Actuator(device string) string {
	return fmt.Sprintf("%s/%s/set", TopicPrefixActuator, device)
}

// ActuatorAck returns the topic on which an output device acknowledges
// a command or reports completion.
//
// Example: doorguard/actuator/speaker/done
func (Topics) ActuatorAck(device string) string {
	return fmt.Sprintf("%s/%s/done", TopicPrefixActuator, device)
}

// Keypad returns the kiosk keypad input topic.
//
// Example: doorguard/input/keypad
func (Topics) Keypad() string {
	return TopicPrefixInput + "/keypad"
}

// Hotkey returns the kiosk hotkey input topic.
//
// Example: doorguard/input/hotkey
func (Topics) Hotkey() string {
	return TopicPrefixInput + "/hotkey"
}

// AdminPanelOpen returns the topic that hands control to the admin panel.
//
// Example: doorguard/admin/panel/open
func (Topics) AdminPanelOpen() string {
	return TopicPrefixAdmin + "/panel/open"
}

// AdminPanelClosed returns the topic on which the admin panel reports it
// has handed control back.
//
// Example: doorguard/admin/panel/closed
func (Topics) AdminPanelClosed() string {
	return TopicPrefixAdmin + "/panel/closed"
}

// CoreStatus returns the retained session status topic.
//
// Example: doorguard/core/status
func (Topics) CoreStatus() string {
	return TopicPrefixCore + "/status"
}

// CoreEvent returns the topic for a core event kind.
//
// Example: doorguard/core/event/door_unlocked
func (Topics) CoreEvent(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, kind)
}

// CoreAlert returns the notifier topic for a severity level.
//
// Example: doorguard/core/alert/critical
func (Topics) CoreAlert(level string) string {
	return fmt.Sprintf("%s/alert/%s", TopicPrefixCore, level)
}

// SystemStatus returns the online/offline status topic (LWT).
//
// Example: doorguard/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllCoreAlerts matches every notifier alert.
//
// Pattern: doorguard/core/alert/+
func (Topics) AllCoreAlerts() string {
	return TopicPrefixCore + "/alert/+"
}

// AllCoreEvents matches every core event.
//
// Pattern: doorguard/core/event/+
func (Topics) AllCoreEvents() string {
	return TopicPrefixCore + "/event/+"
}

// AllSensors matches every sensor reading.
//
// Pattern: doorguard/sensor/+
func (Topics) AllSensors() string {
	return TopicPrefixSensor + "/+"
}

// AllTopics matches all Doorguard traffic.
//
// Pattern: doorguard/#
func (Topics) AllTopics() string {
	return TopicRoot + "/#"
}
