package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"streambridge/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allowing all origins for development
	},
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan WSMessage
}

func (s *Server) addClient(client *wsClient) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(client *wsClient) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
	close(client.send)
}

// broadcastLogs fans the logger stream out to every connected client.
func (s *Server) broadcastLogs() {
	for msgStr := range s.logCh {
		msg := WSMessage{Type: "log_entry", Payload: json.RawMessage(fmt.Sprintf("%q", msgStr))}

		s.clientsMu.Lock()
		for client := range s.clients {
			select {
			case client.send <- msg:
			default:
				// Drop message if client buffer is full
			}
		}
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WS upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan WSMessage, 256)}
	s.addClient(client)

	defer func() {
		s.removeClient(client)
		conn.Close()
	}()

	logger.Debug("WS client connected", "remote", r.RemoteAddr)

	// Replay log history and current preferences before live entries arrive.
	go func() {
		s.sendLogHistory(client)
		s.sendPrefs(client)
	}()

	// Read loop (client -> server). Closing the connection on read error
	// makes the write loop below fail and clean up.
	go func() {
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Debug("WS read error", "err", err)
				}
				conn.Close()
				return
			}

			switch msg.Type {
			case "get_prefs":
				s.sendPrefs(client)
			case "set_pref":
				s.handleSetPrefWS(client, msg.Payload)
			case "set_log_level":
				s.handleSetLogLevelWS(msg.Payload)
			}
		}
	}()

	// Write loop (server -> client)
	for msg := range client.send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// trySend queues a message for one client. The membership check under
// clientsMu keeps it from racing removeClient, which closes the send channel.
func (s *Server) trySend(client *wsClient, msg WSMessage) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if !s.clients[client] {
		return
	}
	select {
	case client.send <- msg:
	default:
		// Drop message if client buffer is full
	}
}

func (s *Server) sendLogHistory(client *wsClient) {
	history := logger.GetHistory()
	payload, _ := json.Marshal(history)
	s.trySend(client, WSMessage{Type: "log_history", Payload: payload})
}

func (s *Server) sendPrefs(client *wsClient) {
	payload, _ := json.Marshal(s.prefs.Snapshot())
	s.trySend(client, WSMessage{Type: "prefs", Payload: payload})
}

func (s *Server) handleSetPrefWS(client *wsClient, payload json.RawMessage) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.Key == "" {
		s.trySend(client, WSMessage{Type: "pref_status", Payload: json.RawMessage(`{"status":"error","message":"Invalid preference data"}`)})
		return
	}

	s.prefs.Set(req.Key, req.Value)
	s.sendPrefs(client)
}

func (s *Server) handleSetLogLevelWS(payload json.RawMessage) {
	var req struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	logger.SetLevel(req.Level)
	s.config.LogLevel = req.Level
	if err := s.config.Save(); err != nil {
		logger.Warn("Failed to persist log level", "err", err)
	}
}
