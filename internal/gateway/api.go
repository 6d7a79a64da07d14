// ABOUTME: Management HTTP handlers: health, backend ping, and instance lifecycle
// ABOUTME: Every response is JSON; errors use {"error": "..."}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/2389/afrik-gateway/internal/auth"
	"github.com/2389/afrik-gateway/internal/session"
	"github.com/2389/afrik-gateway/internal/store"
)

var instanceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// InitResponse is the JSON response for POST /instances/init/{id}.
type InitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Sessions  int     `json:"sessions"`
}

// PairingResponse is the JSON response for GET /instances/qr/{id} once a
// pairing code is available. Code is the raw payload to render as a QR code.
type PairingResponse struct {
	Code string `json:"code"`
}

// EventResponse is one entry of GET /instances/events/{id}.
type EventResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", g.handleHealth)

	guarded := func(h http.HandlerFunc) http.Handler { return g.guard.Middleware(h) }
	limited := func(h http.HandlerFunc) http.Handler {
		return g.guard.Middleware(g.instanceLimit.middleware(h))
	}

	mux.Handle("GET /ping-api", guarded(g.handlePingAPI))
	mux.Handle("POST /instances/init/{id}", limited(withInstanceID(g.handleInit)))
	mux.Handle("GET /instances/status", guarded(g.handleListStatus))
	mux.Handle("GET /instances/status/{id}", guarded(withInstanceID(g.handleStatus)))
	mux.Handle("GET /instances/qr/{id}", guarded(withInstanceID(g.handlePairing)))
	mux.Handle("POST /instances/stop/{id}", limited(withInstanceID(g.handleStop)))
	mux.Handle("GET /instances/events/{id}", guarded(withInstanceID(g.handleEvents)))
}

// withInstanceID rejects malformed {id} path values with 400.
func withInstanceID(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !instanceIDPattern.MatchString(r.PathValue("id")) {
			sendJSONError(w, http.StatusBadRequest, "Invalid Instance ID format")
			return
		}
		h(w, r)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := g.now()
	sendJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(g.startedAt).Seconds(),
		Sessions:  len(g.supervisor.List()),
	})
}

func (g *Gateway) handlePingAPI(w http.ResponseWriter, r *http.Request) {
	res := g.backend.Ping(r.Context())
	body := map[string]any{
		"status":     "accessible",
		"reachable":  res.Reachable,
		"latency_ms": res.Latency.Milliseconds(),
	}
	if res.Status != 0 {
		body["code"] = res.Status
	}
	if res.Error != "" {
		body["message"] = res.Error
	}
	if !res.Reachable {
		body["status"] = "unreachable"
		sendJSON(w, http.StatusBadGateway, body)
		return
	}
	sendJSON(w, http.StatusOK, body)
}

func (g *Gateway) handleInit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := g.supervisor.Init(id)
	switch {
	case errors.Is(err, session.ErrAlreadyConnected):
		sendJSON(w, http.StatusBadRequest, InitResponse{Message: fmt.Sprintf("Instance %s is already connected.", id)})
	case errors.Is(err, session.ErrCapacityExceeded):
		sendJSON(w, http.StatusBadRequest, InitResponse{Message: fmt.Sprintf("Maximum instance limit (%d) reached.", g.config.Sessions.MaxSessions)})
	case err != nil:
		g.logger.Error("init failed", "session", id, "error", err)
		sendJSON(w, http.StatusServiceUnavailable, InitResponse{Message: err.Error()})
	case res == session.InitInProgress:
		sendJSON(w, http.StatusOK, InitResponse{Success: true, Message: fmt.Sprintf("Instance %s is already initializing.", id)})
	default:
		g.logCaller(r, "instance init", id)
		sendJSON(w, http.StatusOK, InitResponse{Success: true, Message: fmt.Sprintf("L'initialisation de l'instance %s a demarre.", id)})
	}
}

func (g *Gateway) handleListStatus(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, g.supervisor.List())
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := g.supervisor.Status(r.PathValue("id"))
	if err != nil {
		sendJSONError(w, http.StatusNotFound, "Instance not found")
		return
	}
	sendJSON(w, http.StatusOK, info)
}

func (g *Gateway) handlePairing(w http.ResponseWriter, r *http.Request) {
	code, status, err := g.supervisor.PairingCode(r.PathValue("id"))
	switch {
	case err != nil:
		sendJSONError(w, http.StatusNotFound, "Instance not found")
	case status == session.StatusReady:
		sendJSON(w, http.StatusOK, map[string]string{"message": "Instance is already connected"})
	case code == "":
		sendJSON(w, http.StatusAccepted, map[string]string{"message": "QR code not yet generated"})
	default:
		sendJSON(w, http.StatusOK, PairingResponse{Code: code})
	}
}

func (g *Gateway) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := g.supervisor.Stop(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			sendJSONError(w, http.StatusNotFound, "Instance not found")
			return
		}
		g.logger.Error("stop failed", "session", id, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to stop instance")
		return
	}
	g.logCaller(r, "instance stopped", id)
	sendJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Instance %s stopped", id)})
}

// handleEvents returns the lifecycle log of an id, newest first. The log
// outlives the session, so unknown ids yield an empty list.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := g.store.ListEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		g.logger.Error("listing events failed", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse(e))
	}
	sendJSON(w, http.StatusOK, out)
}

func eventResponse(e *store.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (g *Gateway) logCaller(r *http.Request, msg, id string) {
	if c, ok := auth.CallerFromContext(r.Context()); ok {
		g.logger.Info(msg, "session", id, "caller", c.Subject, "method", c.Method)
		return
	}
	g.logger.Info(msg, "session", id)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}
