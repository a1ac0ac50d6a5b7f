package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/programs"
	"github.com/patrickudo2004/kairon/go/internal/realtime"
)

// WebSocketHandler handles websocket upgrade requests for program topics
type WebSocketHandler struct {
	hub *Hub
}

func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleProgramConnection handles GET /ws/program?topic=kairon.program.<id>
func (h *WebSocketHandler) HandleProgramConnection(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}
	if _, ok := realtime.ProgramIDFromTopic(topic); !ok {
		http.Error(w, "invalid topic", http.StatusBadRequest)
		return
	}

	// The upgrader has already written an error response when this fails.
	if err := h.hub.Connect(w, r, topic); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/program", h.HandleProgramConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

// ProgramHandler exposes the program store over REST
type ProgramHandler struct {
	app *programs.App
}

func NewProgramHandler(app *programs.App) *ProgramHandler {
	return &ProgramHandler{app: app}
}

func (h *ProgramHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/programs", h.HandleList)
	mux.HandleFunc("GET /api/programs/{id}", h.HandleGet)
	mux.HandleFunc("PUT /api/programs/{id}", h.HandleSave)
	mux.HandleFunc("DELETE /api/programs/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/programs/{id}/duplicate", h.HandleDuplicate)
}

// HandleList handles GET /api/programs
func (h *ProgramHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Program{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /api/programs/{id}
func (h *ProgramHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSave handles PUT /api/programs/{id}, inserting or replacing the program.
func (h *ProgramHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var p models.Program
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid program body", http.StatusBadRequest)
		return
	}
	if p.ID != r.PathValue("id") {
		http.Error(w, "program id does not match path", http.StatusBadRequest)
		return
	}
	if err := h.app.Save(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /api/programs/{id} and returns the program to show next.
func (h *ProgramHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	next, err := h.app.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// HandleDuplicate handles POST /api/programs/{id}/duplicate
func (h *ProgramHandler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Duplicate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, programs.ErrNotFound):
		http.Error(w, "program not found", http.StatusNotFound)
	case errors.Is(err, programs.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("program request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
