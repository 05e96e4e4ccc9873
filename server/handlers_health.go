package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HandleHealthz responds to liveness checks by checking database connectivity
// when a database is configured.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.DB != nil {
		if err := h.opts.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness checks with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	type check struct {
		name string
		fn   func() error
	}
	var checks []check
	if h.opts.DB != nil {
		checks = append(checks, check{"database", func() error { return h.opts.DB.PingContext(r.Context()) }})
	}
	for _, t := range h.opts.Transports {
		checks = append(checks, check{"transport_" + t.Name(), func() error {
			if !t.Connected() {
				return fmt.Errorf("%s not connected", t.Name())
			}
			return nil
		}})
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type transportStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type statusResponse struct {
	UptimeSeconds    int64             `json:"uptime_seconds"`
	Transports       []transportStatus `json:"transports"`
	Plugins          []string          `json:"plugins"`
	SedConversations int               `json:"sed_conversations"`
	Database         bool              `json:"database"`
}

// HandleStatus reports connection state, loaded plugins and correction memory.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: int64(time.Since(h.started) / time.Second),
		Transports:    make([]transportStatus, 0, len(h.opts.Transports)),
		Plugins:       h.opts.Plugins,
		Database:      h.opts.DB != nil,
	}
	if resp.Plugins == nil {
		resp.Plugins = []string{}
	}
	for _, t := range h.opts.Transports {
		resp.Transports = append(resp.Transports, transportStatus{Name: t.Name(), Connected: t.Connected()})
	}
	if h.opts.History != nil {
		resp.SedConversations = h.opts.History.Conversations()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	// Set headers before writing status code
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
