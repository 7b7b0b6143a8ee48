package api

import (
	"encoding/json"
	"testing"

	"streambridge/pkg/prefs"
)

func TestWSSendAfterDisconnectDoesNotPanic(t *testing.T) {
	s, _ := testServer(t)

	client := &wsClient{send: make(chan WSMessage, 1)}
	s.addClient(client)
	s.removeClient(client)

	// The send channel is closed now; these must drop the messages instead of
	// panicking.
	s.handleSetPrefWS(client, json.RawMessage(`{"key":"`+prefs.KeyQuality+`","value":"Source"}`))
	s.handleSetPrefWS(client, json.RawMessage(`{`))
	s.sendPrefs(client)
	s.sendLogHistory(client)
}

func TestWSSetPrefInvalidPayloadReportsError(t *testing.T) {
	s, _ := testServer(t)

	client := &wsClient{send: make(chan WSMessage, 4)}
	s.addClient(client)
	defer s.removeClient(client)

	s.handleSetPrefWS(client, json.RawMessage(`{`))

	select {
	case msg := <-client.send:
		if msg.Type != "pref_status" {
			t.Errorf("Expected pref_status message, got %q", msg.Type)
		}
	default:
		t.Error("Expected an error message on the client channel")
	}
}

func TestWSSetPrefUpdatesStoreAndEchoes(t *testing.T) {
	s, _ := testServer(t)

	client := &wsClient{send: make(chan WSMessage, 4)}
	s.addClient(client)
	defer s.removeClient(client)

	s.handleSetPrefWS(client, json.RawMessage(`{"key":"`+prefs.KeyQuality+`","value":"4 Mbps"}`))

	if got := s.prefs.Get(prefs.KeyQuality); got != "4 Mbps" {
		t.Errorf("Expected preference stored, got %q", got)
	}

	select {
	case msg := <-client.send:
		if msg.Type != "prefs" {
			t.Errorf("Expected prefs snapshot message, got %q", msg.Type)
		}
	default:
		t.Error("Expected a prefs snapshot on the client channel")
	}
}
