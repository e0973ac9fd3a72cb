package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"enveye/internal/session"
)

const (
	sessionWSWriteWait = 10 * time.Second
	sessionWSPongWait  = 60 * time.Second
	sessionWSPingEvery = (sessionWSPongWait * 9) / 10
)

var sessionWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type sessionWSOutbound struct {
	Type      string           `json:"type"`
	SessionID string           `json:"sessionId,omitempty"`
	State     session.State    `json:"state,omitempty"`
	Flagged   bool             `json:"flagged,omitempty"`
	Message   *session.Message `json:"message,omitempty"`
}

// HandleSessionWS streams session state changes and transcript appends to
// a dashboard client.
func (h *DiagnosisHandler) HandleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	mgr, ok := h.registry.Get(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	conn, err := sessionWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(sessionWSPongWait)); err != nil {
		log.Printf("session ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(sessionWSPongWait))
	})

	writeCh := make(chan sessionWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(sessionWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(sessionWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(sessionWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushSessionWS(writeCh, sessionWSOutbound{Type: "subscribed", SessionID: sessionID})

	events := mgr.Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				switch evt.Type {
				case session.EventState:
					pushSessionWS(writeCh, sessionWSOutbound{
						Type:      "state",
						SessionID: sessionID,
						State:     evt.State,
						Flagged:   evt.Flagged,
					})
				case session.EventMessage:
					pushSessionWS(writeCh, sessionWSOutbound{
						Type:      "message",
						SessionID: sessionID,
						Message:   evt.Message,
					})
				}
			}
		}
	}()

	// Read loop only services control frames and detects disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			<-writerDone
			return
		}
	}
}

func pushSessionWS(writeCh chan sessionWSOutbound, out sessionWSOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
