package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hray3182/HabitBell/internal/recurrence"
	"github.com/hray3182/HabitBell/internal/reminder"
)

type hookHandler struct {
	svc HabitService
}

type fireResponse struct {
	HabitID      int64      `json:"habit_id"`
	Armed        *bool      `json:"armed,omitempty"` // set by the changed hook only
	Upcoming     bool       `json:"upcoming"`
	At           *time.Time `json:"at,omitempty"`
	Date         string     `json:"date,omitempty"`
	ReminderTime string     `json:"reminder_time,omitempty"`
	Source       string     `json:"source,omitempty"`
	PhaseLabel   string     `json:"phase_label,omitempty"`
}

func newFireResponse(habitID int64, next *recurrence.ScheduledFire) fireResponse {
	resp := fireResponse{HabitID: habitID}
	if next == nil {
		return resp
	}
	at := next.At.UTC()
	resp.Upcoming = true
	resp.At = &at
	resp.Date = next.Date.String()
	resp.ReminderTime = next.ReminderTime
	resp.Source = string(next.Source)
	if next.Entry != nil {
		resp.PhaseLabel = next.Entry.PhaseLabel
	}
	return resp
}

func (h *hookHandler) changed(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(w, r)
	if !ok {
		return
	}
	next, err := h.svc.HabitChanged(r.Context(), id)
	if err != nil {
		writeServiceError(w, id, err)
		return
	}
	resp := newFireResponse(id, next)
	armed := next != nil
	resp.Armed = &armed
	writeJSON(w, http.StatusOK, resp)
}

func (h *hookHandler) deleted(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(w, r)
	if !ok {
		return
	}
	if err := h.svc.HabitDeleted(r.Context(), id); err != nil {
		writeServiceError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *hookHandler) next(w http.ResponseWriter, r *http.Request) {
	id, ok := habitID(w, r)
	if !ok {
		return
	}
	next, err := h.svc.Preview(r.Context(), id)
	if err != nil {
		writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, newFireResponse(id, next))
}

func habitID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid habit id"})
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, habitID int64, err error) {
	if errors.Is(err, reminder.ErrHabitNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "habit not found"})
		return
	}
	log.Printf("Failed to handle hook for habit %d: %v", habitID, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
