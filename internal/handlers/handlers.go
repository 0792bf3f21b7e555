package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"clinicbot/db"
)

// SurveyOps запускает рассылку опросов и сброс незавершённых.
type SurveyOps interface {
	Run(ctx context.Context) error
	ResetAndNotify(ctx context.Context) (int64, error)
}

// ReportOps рассылает сводные отчёты сотрудникам.
type ReportOps interface {
	SendMonthlyReports(ctx context.Context) error
}

// SyncOps синхронизирует данные с таблицами.
type SyncOps interface {
	SyncWorkers(ctx context.Context) (int, error)
	SyncPairs(ctx context.Context, targetDate string) (int, error)
	SyncSurveys(ctx context.Context) (int, error)
	SyncShifts(ctx context.Context) (int, error)
	ExportAnswers(ctx context.Context) error
	ExportShifts(ctx context.Context, date string) error
}

// InstrumentOps — администрирование кабинетов и инструментов.
type InstrumentOps interface {
	ListCabinets(ctx context.Context, includeArchived bool) ([]db.Cabinet, error)
	GetCabinet(ctx context.Context, id int64) (*db.Cabinet, error)
	AddCabinet(ctx context.Context, name string) (*db.Cabinet, error)
	RenameCabinet(ctx context.Context, id int64, name string) (bool, error)
	SetCabinetActive(ctx context.Context, id int64, active bool) (bool, error)
	DeleteCabinet(ctx context.Context, id int64) (bool, error)
	ListInstruments(ctx context.Context, cabinetID int64, includeArchived bool) ([]db.Instrument, error)
	AddInstrument(ctx context.Context, cabinetID int64, name string) (*db.Instrument, error)
	RenameInstrument(ctx context.Context, id int64, name string) (bool, error)
	SetInstrumentActive(ctx context.Context, id int64, active bool) (bool, error)
	DeleteInstrument(ctx context.Context, id int64) (bool, error)
	ListRecentMoves(ctx context.Context, limit int) ([]db.InstrumentMove, error)
	GetMove(ctx context.Context, id int64) (*db.InstrumentMove, error)
}

// ShiftOps — администрирование слотов смен на сегодня.
type ShiftOps interface {
	ListToday(ctx context.Context) ([]db.Shift, error)
	CreateSlotToday(ctx context.Context, doctorName, shiftType string) (bool, error)
	DeleteSlotToday(ctx context.Context, shiftID int64) (bool, error)
}

// Handler связывает HTTP-маршруты с движками
type Handler struct {
	Surveys     SurveyOps
	Reports     ReportOps
	Sync        SyncOps
	Instruments InstrumentOps
	Shifts      ShiftOps
	Log         *zap.Logger
}

func NewHandler(surveys SurveyOps, reports ReportOps, sync SyncOps, instr InstrumentOps, shifts ShiftOps, log *zap.Logger) *Handler {
	return &Handler{
		Surveys:     surveys,
		Reports:     reports,
		Sync:        sync,
		Instruments: instr,
		Shifts:      shifts,
		Log:         log,
	}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
