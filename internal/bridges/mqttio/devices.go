package mqttio

import (
	"fmt"

	"github.com/nerrad567/doorguard/internal/access"
)

// Devices bundles every bus-backed collaborator of one door.
type Devices struct {
	Face        *FaceFeed
	Fingerprint *FingerprintFeed
	Card        *CardFeed
	Relay       *Relay
	Buzzer      *Buzzer
	Speaker     *Speaker
	Panel       *Panel
}

// NewDevices creates the collaborators on bus. Call Subscribe before use.
func NewDevices(bus Bus) *Devices {
	return &Devices{
		Face:        NewFaceFeed(),
		Fingerprint: NewFingerprintFeed(),
		Card:        NewCardFeed(),
		Relay:       NewRelay(bus),
		Buzzer:      NewBuzzer(bus),
		Speaker:     NewSpeaker(bus),
		Panel:       NewPanel(bus),
	}
}

// Subscribe attaches every collaborator to bus.
func (d *Devices) Subscribe(bus Bus) error {
	subs := []struct {
		name string
		fn   func() error
	}{
		{"face", func() error { return d.Face.Subscribe(bus) }},
		{"fingerprint", func() error { return d.Fingerprint.Subscribe(bus) }},
		{"rfid", func() error { return d.Card.Subscribe(bus) }},
		{"lock", d.Relay.Subscribe},
		{"speaker", d.Speaker.Subscribe},
		{"panel", d.Panel.Subscribe},
	}
	for _, s := range subs {
		if err := s.fn(); err != nil {
			return fmt.Errorf("subscribing %s: %w", s.name, err)
		}
	}
	return nil
}

// Sensors returns the factor collaborators for the access engine.
func (d *Devices) Sensors() access.Sensors {
	return access.Sensors{
		Camera:      d.Face,
		Face:        d.Face,
		Fingerprint: d.Fingerprint,
		Card:        d.Card,
	}
}
