// Package mqttio connects the access engine to its hardware over MQTT.
//
// Each physical device runs a small bridge process (recogniser sidecar,
// fingerprint module, RFID reader, relay board, buzzer, TTS speaker, kiosk
// keypad, admin panel) that speaks JSON on the doorguard topic tree:
//
//	doorguard/sensor/face            recogniser verdicts       -> FaceFeed
//	doorguard/sensor/fingerprint     fingerprint reads         -> FingerprintFeed
//	doorguard/sensor/rfid            card UIDs                 -> CardFeed
//	doorguard/actuator/lock/set      relay commands            <- Relay
//	doorguard/actuator/lock/done     relay acknowledgements    -> Relay
//	doorguard/actuator/buzzer/set    buzzer patterns           <- Buzzer
//	doorguard/actuator/speaker/set   utterances                <- Speaker
//	doorguard/actuator/speaker/done  playback finished         -> Speaker
//	doorguard/admin/panel/open       admin handoff             <- Panel
//	doorguard/admin/panel/closed     admin panel closed        -> Panel
//	doorguard/input/keypad           passcode entry            -> Input
//	doorguard/input/hotkey           admin and restart keys    -> Input
//	doorguard/core/status            retained session snapshot <- StatusPublisher
//	doorguard/core/event/<kind>      event stream              <- StatusPublisher
//
// Sensor feeds keep only the newest reading: a verdict that arrives while
// nothing is polling replaces the previous one rather than queueing behind
// it.
//
// Thread Safety:
//   - Every type in this package is safe for concurrent use. Bus handlers
//     never block.
package mqttio
