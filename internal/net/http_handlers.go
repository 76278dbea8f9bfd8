// Package net exposes the HTTP surface: health and diagnostics probes,
// read-only history endpoints, and the websocket upgrade.
package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Rayyan-Shk/Gamitar/server"
	"github.com/Rayyan-Shk/Gamitar/server/internal/net/ws"
)

type HTTPHandlerConfig struct {
	Logger *log.Logger
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	sessions := ws.NewHandler(hub, logger)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}).Methods(nethttp.MethodGet)

	r.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		online, sessions := hub.Diagnostics()
		payload := struct {
			Status        string `json:"status"`
			ServerTime    int64  `json:"serverTime"`
			OnlinePlayers int    `json:"onlinePlayers"`
			Sessions      int    `json:"sessions"`
		}{
			Status:        "ok",
			ServerTime:    time.Now().UnixMilli(),
			OnlinePlayers: online,
			Sessions:      sessions,
		}
		writeJSON(w, payload)
	}).Methods(nethttp.MethodGet)

	r.HandleFunc("/history", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		entries, err := hub.History(r.Context())
		if err != nil {
			logger.Printf("failed to load history: %v", err)
			nethttp.Error(w, "failed to load history", nethttp.StatusInternalServerError)
			return
		}
		payload := struct {
			Count   int `json:"count"`
			Entries any `json:"entries"`
		}{Count: len(entries), Entries: entries}
		if entries == nil {
			payload.Entries = []struct{}{}
		}
		writeJSON(w, payload)
	}).Methods(nethttp.MethodGet)

	r.HandleFunc("/history/at", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		raw := r.URL.Query().Get("ts")
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			nethttp.Error(w, "invalid ts", nethttp.StatusBadRequest)
			return
		}
		entry, ok, err := hub.StateAt(r.Context(), ts)
		if err != nil {
			logger.Printf("failed to load state at %d: %v", ts, err)
			nethttp.Error(w, "failed to load state", nethttp.StatusInternalServerError)
			return
		}
		if !ok {
			nethttp.Error(w, "no state at or before timestamp", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, entry)
	}).Methods(nethttp.MethodGet)

	r.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed: %v", err)
			return
		}
		sessions.Serve(conn)
	})

	return r
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
