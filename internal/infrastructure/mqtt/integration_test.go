//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_PublishSubscribeRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "doorguard-it-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // test cleanup

	received := make(chan string, 1)
	topic := Topics{}.Sensor("rfid")
	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := client.PublishJSON(topic, map[string]string{"card_id": "DEADBEEF"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case got := <-received:
		if got != `{"card_id":"DEADBEEF"}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestIntegration_Close(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "doorguard-it-close"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
