// Package mqtt provides the MQTT client used as Doorguard's device bus.
//
// Every piece of door hardware sits behind a small bridge process speaking
// MQTT: the camera and its recogniser sidecar, the fingerprint module, the
// RFID reader, the lock relay, the buzzer, the TTS speaker and the kiosk
// keypad. The core subscribes to sensor and input topics, publishes
// actuator commands, and keeps a retained session status for panels.
//
//	sensors ─┐                       ┌─ doorguard/actuator/lock/set
//	keypad  ─┼─ broker ─ doorguard ──┼─ doorguard/actuator/speaker/set
//	hotkeys ─┘                       └─ doorguard/core/status (retained)
//
// # Topic Scheme
//
//	doorguard/sensor/{face|fingerprint|rfid}
//	doorguard/actuator/{lock|buzzer|speaker}/set
//	doorguard/actuator/{device}/done
//	doorguard/input/{keypad|hotkey}
//	doorguard/admin/panel/{open|closed}
//	doorguard/core/{status,event/+,alert/+}
//	doorguard/system/status            (LWT)
//
// # Security
//
// Use TLS and per-bridge broker credentials outside a bench setup. Card
// identifiers travel on the rfid topic and must be protected by broker ACLs.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Sensor("rfid"), 1, handler)
package mqtt
