package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DispatchSurveysHandler обрабатывает POST /api/surveys/dispatch —
// запуск ежедневной рассылки опросов (дергается планировщиком).
func (h *Handler) DispatchSurveysHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Surveys.Run(r.Context()); err != nil {
		h.Log.Error("survey dispatch failed", zap.Error(err))
		http.Error(w, "Failed to dispatch surveys", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// ResetSurveysHandler обрабатывает POST /api/surveys/reset —
// сброс незавершённых опросов с уведомлением сотрудников.
func (h *Handler) ResetSurveysHandler(w http.ResponseWriter, r *http.Request) {
	reset, err := h.Surveys.ResetAndNotify(r.Context())
	if err != nil {
		h.Log.Error("survey reset failed", zap.Error(err))
		http.Error(w, "Failed to reset surveys", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"reset": reset})
}

// MonthlyReportsHandler обрабатывает POST /api/reports/monthly
func (h *Handler) MonthlyReportsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.SendMonthlyReports(r.Context()); err != nil {
		h.Log.Error("monthly reports failed", zap.Error(err))
		http.Error(w, "Failed to send reports", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// SyncHandler обрабатывает POST /api/sync/{resource}.
// Для pairs дата берётся из query параметра date (по умолчанию сегодня).
func (h *Handler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	var (
		count int
		err   error
	)
	switch resource {
	case "workers":
		count, err = h.Sync.SyncWorkers(r.Context())
	case "pairs":
		count, err = h.Sync.SyncPairs(r.Context(), r.URL.Query().Get("date"))
	case "surveys":
		count, err = h.Sync.SyncSurveys(r.Context())
	case "shifts":
		count, err = h.Sync.SyncShifts(r.Context())
	default:
		http.Error(w, "Unknown sync resource", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.Error("sync failed", zap.String("resource", resource), zap.Error(err))
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"synced": count})
}

// ExportHandler обрабатывает POST /api/export/{resource}
func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")

	var err error
	switch resource {
	case "answers":
		err = h.Sync.ExportAnswers(r.Context())
	case "shifts":
		err = h.Sync.ExportShifts(r.Context(), r.URL.Query().Get("date"))
	default:
		http.Error(w, "Unknown export resource", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.Error("export failed", zap.String("resource", resource), zap.Error(err))
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
