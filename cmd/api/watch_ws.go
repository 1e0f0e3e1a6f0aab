package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mergemap/internal/integrate"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchWSOutbound struct {
	Type  string           `json:"type"`
	RunID string           `json:"runId,omitempty"`
	Event *integrate.Event `json:"event,omitempty"`
}

// handleWatchWS streams run progress events over a websocket. The stream is
// one-way; the read loop only keeps the pong handler alive.
func (s *apiServer) handleWatchWS(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	conn, err := watchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	writeCh := make(chan watchWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out, ok := <-writeCh:
				if !ok {
					deadline := time.Now().Add(watchWSWriteWait)
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	history, events, unsubscribe := s.watcher.Subscribe(runID)
	defer unsubscribe()

	go func() {
		defer close(writeCh)

		push := func(out watchWSOutbound) bool {
			select {
			case <-ctx.Done():
				return false
			case writeCh <- out:
				return true
			}
		}

		if !push(watchWSOutbound{Type: "subscribed", RunID: runID}) {
			return
		}
		for i := range history {
			if !push(watchWSOutbound{Type: "event", RunID: runID, Event: &history[i]}) {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					push(watchWSOutbound{Type: "closed", RunID: runID})
					return
				}
				if !push(watchWSOutbound{Type: "event", RunID: runID, Event: &ev}) {
					return
				}
			}
		}
	}()

	// Reader loop: we ignore client payloads, but reading drives pong
	// handling and detects a dropped peer.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			<-writerDone
			return
		}
	}
}
