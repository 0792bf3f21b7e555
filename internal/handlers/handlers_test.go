package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/handlers"
	"clinicbot/internal/handlers/testutils"
)

// MockOps реализует все интерфейсы Handler в одном типе.
type MockOps struct {
	runErr       error
	resetCount   int64
	reportErr    error
	syncedCount  int
	syncErr      error
	syncedDates  []string
	exported     []string
	cabinets     []db.Cabinet
	deleteOK     bool
	createSlotOK bool
	deleteSlotOK bool
	shiftsToday  []db.Shift
}

func (m *MockOps) Run(_ context.Context) error                     { return m.runErr }
func (m *MockOps) ResetAndNotify(_ context.Context) (int64, error) { return m.resetCount, nil }

func (m *MockOps) SendMonthlyReports(_ context.Context) error { return m.reportErr }

func (m *MockOps) SyncWorkers(_ context.Context) (int, error) { return m.syncedCount, m.syncErr }
func (m *MockOps) SyncPairs(_ context.Context, targetDate string) (int, error) {
	m.syncedDates = append(m.syncedDates, targetDate)
	return m.syncedCount, m.syncErr
}
func (m *MockOps) SyncSurveys(_ context.Context) (int, error) { return m.syncedCount, m.syncErr }
func (m *MockOps) SyncShifts(_ context.Context) (int, error)  { return m.syncedCount, m.syncErr }
func (m *MockOps) ExportAnswers(_ context.Context) error {
	m.exported = append(m.exported, "answers")
	return nil
}
func (m *MockOps) ExportShifts(_ context.Context, date string) error {
	m.exported = append(m.exported, "shifts:"+date)
	return nil
}

func (m *MockOps) ListCabinets(_ context.Context, _ bool) ([]db.Cabinet, error) {
	return m.cabinets, nil
}
func (m *MockOps) GetCabinet(_ context.Context, _ int64) (*db.Cabinet, error) { return nil, nil }
func (m *MockOps) AddCabinet(_ context.Context, name string) (*db.Cabinet, error) {
	return &db.Cabinet{ID: 1, Name: name, IsActive: true}, nil
}
func (m *MockOps) RenameCabinet(_ context.Context, _ int64, _ string) (bool, error) {
	return true, nil
}
func (m *MockOps) SetCabinetActive(_ context.Context, _ int64, _ bool) (bool, error) {
	return true, nil
}
func (m *MockOps) DeleteCabinet(_ context.Context, _ int64) (bool, error) { return m.deleteOK, nil }
func (m *MockOps) ListInstruments(_ context.Context, _ int64, _ bool) ([]db.Instrument, error) {
	return nil, nil
}
func (m *MockOps) AddInstrument(_ context.Context, cabinetID int64, name string) (*db.Instrument, error) {
	return &db.Instrument{ID: 1, Name: name, CabinetID: cabinetID, IsActive: true}, nil
}
func (m *MockOps) RenameInstrument(_ context.Context, _ int64, _ string) (bool, error) {
	return true, nil
}
func (m *MockOps) SetInstrumentActive(_ context.Context, _ int64, _ bool) (bool, error) {
	return true, nil
}
func (m *MockOps) DeleteInstrument(_ context.Context, _ int64) (bool, error) { return true, nil }
func (m *MockOps) ListRecentMoves(_ context.Context, _ int) ([]db.InstrumentMove, error) {
	return nil, nil
}
func (m *MockOps) GetMove(_ context.Context, _ int64) (*db.InstrumentMove, error) {
	return nil, nil
}

func (m *MockOps) ListToday(_ context.Context) ([]db.Shift, error) { return m.shiftsToday, nil }
func (m *MockOps) CreateSlotToday(_ context.Context, _, _ string) (bool, error) {
	return m.createSlotOK, nil
}
func (m *MockOps) DeleteSlotToday(_ context.Context, _ int64) (bool, error) {
	return m.deleteSlotOK, nil
}

func newHandler(ops *MockOps) *handlers.Handler {
	return handlers.NewHandler(ops, ops, ops, ops, ops, zap.NewNop())
}

func TestPingHandler(t *testing.T) {
	h := newHandler(&MockOps{})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	h.PingHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestDispatchSurveysHandler(t *testing.T) {
	h := newHandler(&MockOps{})

	req := httptest.NewRequest(http.MethodPost, "/api/surveys/dispatch", nil)
	w := httptest.NewRecorder()
	h.DispatchSurveysHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestDispatchSurveysHandler_Error(t *testing.T) {
	h := newHandler(&MockOps{runErr: errors.New("db down")})

	req := httptest.NewRequest(http.MethodPost, "/api/surveys/dispatch", nil)
	w := httptest.NewRecorder()
	h.DispatchSurveysHandler(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestResetSurveysHandler(t *testing.T) {
	h := newHandler(&MockOps{resetCount: 4})

	req := httptest.NewRequest(http.MethodPost, "/api/surveys/reset", nil)
	w := httptest.NewRecorder()
	h.ResetSurveysHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"reset":4`)
}

func TestSyncHandler_Pairs(t *testing.T) {
	ops := &MockOps{syncedCount: 2}
	h := newHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/pairs?date=01.09.2025", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"resource": "pairs"})
	w := httptest.NewRecorder()
	h.SyncHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"synced":2`)
	require.Equal(t, []string{"01.09.2025"}, ops.syncedDates)
}

func TestSyncHandler_UnknownResource(t *testing.T) {
	h := newHandler(&MockOps{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/nonsense", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"resource": "nonsense"})
	w := httptest.NewRecorder()
	h.SyncHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandler_Shifts(t *testing.T) {
	ops := &MockOps{}
	h := newHandler(ops)

	req := httptest.NewRequest(http.MethodPost, "/api/export/shifts?date=01.09.2025", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"resource": "shifts"})
	w := httptest.NewRecorder()
	h.ExportHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"shifts:01.09.2025"}, ops.exported)
}

func TestCreateCabinetHandler(t *testing.T) {
	h := newHandler(&MockOps{})

	req := httptest.NewRequest(http.MethodPost, "/api/cabinets/new",
		strings.NewReader(`{"name":"Стерилизационная"}`))
	w := httptest.NewRecorder()
	h.CreateCabinetHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Стерилизационная")
}

func TestCreateCabinetHandler_MissingName(t *testing.T) {
	h := newHandler(&MockOps{})

	req := httptest.NewRequest(http.MethodPost, "/api/cabinets/new", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.CreateCabinetHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteCabinetHandler_Occupied(t *testing.T) {
	h := newHandler(&MockOps{deleteOK: false})

	req := httptest.NewRequest(http.MethodDelete, "/api/cabinets/3", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"cabinetId": "3"})
	w := httptest.NewRecorder()
	h.DeleteCabinetHandler(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteCabinetHandler_BadID(t *testing.T) {
	h := newHandler(&MockOps{})

	req := httptest.NewRequest(http.MethodDelete, "/api/cabinets/abc", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"cabinetId": "abc"})
	w := httptest.NewRecorder()
	h.DeleteCabinetHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSlotHandler_BadType(t *testing.T) {
	h := newHandler(&MockOps{createSlotOK: true})

	req := httptest.NewRequest(http.MethodPost, "/api/shifts/new",
		strings.NewReader(`{"doctorName":"Смирнов","type":"night"}`))
	w := httptest.NewRecorder()
	h.CreateSlotHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSlotHandler_Duplicate(t *testing.T) {
	h := newHandler(&MockOps{createSlotOK: false})

	req := httptest.NewRequest(http.MethodPost, "/api/shifts/new",
		strings.NewReader(`{"doctorName":"Смирнов","type":"morning"}`))
	w := httptest.NewRecorder()
	h.CreateSlotHandler(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteSlotHandler(t *testing.T) {
	h := newHandler(&MockOps{deleteSlotOK: true})

	req := httptest.NewRequest(http.MethodDelete, "/api/shifts/2", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"shiftId": "2"})
	w := httptest.NewRecorder()
	h.DeleteSlotHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
