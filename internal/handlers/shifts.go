package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"clinicbot/db"
)

// GetTodayShiftsHandler возвращает все слоты смен на сегодня
func (h *Handler) GetTodayShiftsHandler(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Shifts.ListToday(r.Context())
	if err != nil {
		h.Log.Error("list today shifts failed", zap.Error(err))
		http.Error(w, "Failed to get shifts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, shifts)
}

type slotRequest struct {
	DoctorName string `json:"doctorName"`
	Type       string `json:"type"`
}

// CreateSlotHandler обрабатывает POST /api/shifts/new —
// создаёт свободный слот на сегодня.
func (h *Handler) CreateSlotHandler(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.DoctorName == "" {
		http.Error(w, "doctorName is required", http.StatusBadRequest)
		return
	}
	if req.Type != db.ShiftMorning && req.Type != db.ShiftEvening {
		http.Error(w, "type must be morning or evening", http.StatusBadRequest)
		return
	}

	created, err := h.Shifts.CreateSlotToday(r.Context(), req.DoctorName, req.Type)
	if err != nil {
		h.Log.Error("create slot failed", zap.String("doctor", req.DoctorName), zap.Error(err))
		http.Error(w, "Failed to create slot", http.StatusInternalServerError)
		return
	}
	if !created {
		http.Error(w, "Slot already exists", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// DeleteSlotHandler обрабатывает DELETE /api/shifts/{shiftId}.
// Удалить можно только сегодняшний слот.
func (h *Handler) DeleteSlotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "shiftId")
	if !ok {
		http.Error(w, "Invalid shiftId", http.StatusBadRequest)
		return
	}

	deleted, err := h.Shifts.DeleteSlotToday(r.Context(), id)
	if err != nil {
		h.Log.Error("delete slot failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to delete slot", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Slot not found or not today's", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
