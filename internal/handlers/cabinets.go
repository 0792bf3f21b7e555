package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func parseID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

type cabinetRequest struct {
	Name string `json:"name"`
}

// GetCabinetsHandler возвращает список кабинетов.
// Query параметр archived=true включает архивные.
func (h *Handler) GetCabinetsHandler(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"

	cabinets, err := h.Instruments.ListCabinets(r.Context(), includeArchived)
	if err != nil {
		h.Log.Error("list cabinets failed", zap.Error(err))
		http.Error(w, "Failed to get cabinets", http.StatusInternalServerError)
		return
	}
	writeJSON(w, cabinets)
}

// CreateCabinetHandler обрабатывает POST /api/cabinets/new
func (h *Handler) CreateCabinetHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req cabinetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.Name == "" || len(req.Name) > 100 {
		http.Error(w, "name is required and max length 100", http.StatusBadRequest)
		return
	}

	cabinet, err := h.Instruments.AddCabinet(r.Context(), req.Name)
	if err != nil {
		h.Log.Error("create cabinet failed", zap.Error(err))
		http.Error(w, "Failed to create cabinet", http.StatusInternalServerError)
		return
	}
	writeJSON(w, cabinet)
}

// RenameCabinetHandler обрабатывает PATCH /api/cabinets/{cabinetId}
func (h *Handler) RenameCabinetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "cabinetId")
	if !ok {
		http.Error(w, "Invalid cabinetId", http.StatusBadRequest)
		return
	}

	var req cabinetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	renamed, err := h.Instruments.RenameCabinet(r.Context(), id, req.Name)
	if err != nil {
		h.Log.Error("rename cabinet failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to rename cabinet", http.StatusInternalServerError)
		return
	}
	if !renamed {
		http.Error(w, "Cabinet not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// ArchiveCabinetHandler обрабатывает PUT /api/cabinets/{cabinetId}/active
func (h *Handler) ArchiveCabinetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "cabinetId")
	if !ok {
		http.Error(w, "Invalid cabinetId", http.StatusBadRequest)
		return
	}
	active := r.URL.Query().Get("active") == "true"

	updated, err := h.Instruments.SetCabinetActive(r.Context(), id, active)
	if err != nil {
		h.Log.Error("archive cabinet failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to update cabinet", http.StatusInternalServerError)
		return
	}
	if !updated {
		http.Error(w, "Cabinet not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// DeleteCabinetHandler обрабатывает DELETE /api/cabinets/{cabinetId}.
// Кабинет с инструментами удалить нельзя.
func (h *Handler) DeleteCabinetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "cabinetId")
	if !ok {
		http.Error(w, "Invalid cabinetId", http.StatusBadRequest)
		return
	}

	deleted, err := h.Instruments.DeleteCabinet(r.Context(), id)
	if err != nil {
		h.Log.Error("delete cabinet failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to delete cabinet", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Cabinet not found or not empty", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetInstrumentsHandler возвращает инструменты кабинета
func (h *Handler) GetInstrumentsHandler(w http.ResponseWriter, r *http.Request) {
	cabinetID, ok := parseID(r, "cabinetId")
	if !ok {
		http.Error(w, "Invalid cabinetId", http.StatusBadRequest)
		return
	}
	includeArchived := r.URL.Query().Get("archived") == "true"

	items, err := h.Instruments.ListInstruments(r.Context(), cabinetID, includeArchived)
	if err != nil {
		h.Log.Error("list instruments failed", zap.Int64("cabinet_id", cabinetID), zap.Error(err))
		http.Error(w, "Failed to get instruments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, items)
}

type instrumentRequest struct {
	CabinetID int64  `json:"cabinetId"`
	Name      string `json:"name"`
}

// CreateInstrumentHandler обрабатывает POST /api/instruments/new
func (h *Handler) CreateInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.CabinetID <= 0 {
		http.Error(w, "name and cabinetId are required", http.StatusBadRequest)
		return
	}

	item, err := h.Instruments.AddInstrument(r.Context(), req.CabinetID, req.Name)
	if err != nil {
		h.Log.Error("create instrument failed", zap.Error(err))
		http.Error(w, "Failed to create instrument", http.StatusInternalServerError)
		return
	}
	writeJSON(w, item)
}

// RenameInstrumentHandler обрабатывает PATCH /api/instruments/{instrumentId}
func (h *Handler) RenameInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "instrumentId")
	if !ok {
		http.Error(w, "Invalid instrumentId", http.StatusBadRequest)
		return
	}

	var req instrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	renamed, err := h.Instruments.RenameInstrument(r.Context(), id, req.Name)
	if err != nil {
		h.Log.Error("rename instrument failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to rename instrument", http.StatusInternalServerError)
		return
	}
	if !renamed {
		http.Error(w, "Instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// ArchiveInstrumentHandler обрабатывает PUT /api/instruments/{instrumentId}/active
func (h *Handler) ArchiveInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "instrumentId")
	if !ok {
		http.Error(w, "Invalid instrumentId", http.StatusBadRequest)
		return
	}
	active := r.URL.Query().Get("active") == "true"

	updated, err := h.Instruments.SetInstrumentActive(r.Context(), id, active)
	if err != nil {
		h.Log.Error("archive instrument failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to update instrument", http.StatusInternalServerError)
		return
	}
	if !updated {
		http.Error(w, "Instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// DeleteInstrumentHandler обрабатывает DELETE /api/instruments/{instrumentId}
func (h *Handler) DeleteInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "instrumentId")
	if !ok {
		http.Error(w, "Invalid instrumentId", http.StatusBadRequest)
		return
	}

	deleted, err := h.Instruments.DeleteInstrument(r.Context(), id)
	if err != nil {
		h.Log.Error("delete instrument failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to delete instrument", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetMovesHandler возвращает последние переносы инструментов
func (h *Handler) GetMovesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	moves, err := h.Instruments.ListRecentMoves(r.Context(), limit)
	if err != nil {
		h.Log.Error("list moves failed", zap.Error(err))
		http.Error(w, "Failed to get moves", http.StatusInternalServerError)
		return
	}
	writeJSON(w, moves)
}

// GetMoveHandler возвращает перенос по id, вместе с file_id обоих фото
func (h *Handler) GetMoveHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "moveId")
	if !ok {
		http.Error(w, "Invalid moveId", http.StatusBadRequest)
		return
	}

	move, err := h.Instruments.GetMove(r.Context(), id)
	if err != nil {
		h.Log.Error("get move failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "Failed to get move", http.StatusInternalServerError)
		return
	}
	if move == nil {
		http.Error(w, "Move not found", http.StatusNotFound)
		return
	}
	writeJSON(w, move)
}
