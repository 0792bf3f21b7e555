// Package shifts manages assistant self-service slot claiming and the
// admin side of the daily schedule.
package shifts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clinicbot/db"
)

type Store interface {
	GetWorkerByChatID(ctx context.Context, chatID string) (*db.Worker, error)
	GetWorker(ctx context.Context, id int64) (*db.Worker, error)
	ListWorkers(ctx context.Context) ([]db.Worker, error)
	ListFreeShifts(ctx context.Context, date, shiftType string) ([]db.Shift, error)
	GetShift(ctx context.Context, id int64) (*db.Shift, error)
	GetShiftForAssistant(ctx context.Context, assistantID int64, date, shiftType string) (*db.Shift, error)
	ClaimShift(ctx context.Context, assistantID int64, assistantName string, shiftID int64) (bool, error)
	CreateManualShift(ctx context.Context, assistantID int64, assistantName, doctorName, date, shiftType string) (bool, error)
	ReleaseShift(ctx context.Context, assistantID int64, date, shiftType string) error
	CreateShiftSlot(ctx context.Context, doctorName, date, shiftType string) error
	DeleteShift(ctx context.Context, id int64) (bool, error)
	ListShiftsByDate(ctx context.Context, date string) ([]db.Shift, error)
}

// DetectShiftType maps an hour of day to a shift type. Hours outside both
// windows have no valid type and claims are rejected.
func DetectShiftType(hour int) (string, bool) {
	switch {
	case hour >= 8 && hour < 14:
		return db.ShiftMorning, true
	case hour >= 14 && hour < 20:
		return db.ShiftEvening, true
	}
	return "", false
}

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// GuessNow infers the shift type and date from the current wall clock.
func (s *Service) GuessNow() (shiftType, date string, ok bool) {
	now := s.now()
	shiftType, ok = DetectShiftType(now.Hour())
	return shiftType, now.Format(db.DateLayout), ok
}

func (s *Service) Assistant(ctx context.Context, chatID string) (*db.Worker, error) {
	return s.store.GetWorkerByChatID(ctx, chatID)
}

func (s *Service) ListDoctors(ctx context.Context) ([]db.Worker, error) {
	return s.store.ListWorkers(ctx)
}

func (s *Service) CurrentShift(ctx context.Context, assistantID int64, date, shiftType string) (*db.Shift, error) {
	return s.store.GetShiftForAssistant(ctx, assistantID, date, shiftType)
}

func (s *Service) ListFree(ctx context.Context, date, shiftType string) ([]db.Shift, error) {
	return s.store.ListFreeShifts(ctx, date, shiftType)
}

// Claim assigns a pre-built slot to the assistant. Returns false when the
// slot is taken or the assistant already holds a slot of that date+type;
// the storage layer resolves concurrent claims so exactly one wins.
func (s *Service) Claim(ctx context.Context, assistant *db.Worker, shiftID int64) (bool, error) {
	ok, err := s.store.ClaimShift(ctx, assistant.ID, assistant.FullName, shiftID)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info("shift claimed",
			zap.Int64("shift_id", shiftID), zap.Int64("assistant_id", assistant.ID))
	}
	return ok, nil
}

// ClaimManual creates an ad-hoc slot for a doctor missing from the
// imported schedule and claims it in the same statement.
func (s *Service) ClaimManual(ctx context.Context, assistant *db.Worker, doctorName, date, shiftType string) (bool, error) {
	ok, err := s.store.CreateManualShift(ctx, assistant.ID, assistant.FullName, doctorName, date, shiftType)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info("manual shift claimed",
			zap.String("doctor", doctorName),
			zap.String("date", date),
			zap.String("type", shiftType),
			zap.Int64("assistant_id", assistant.ID))
	}
	return ok, nil
}

// Release frees the assistant's slot for the date+type. Manual rows stay
// and become claimable like schedule-driven ones.
func (s *Service) Release(ctx context.Context, assistantID int64, date, shiftType string) error {
	return s.store.ReleaseShift(ctx, assistantID, date, shiftType)
}

// ListToday returns today's full schedule for the admin panel.
func (s *Service) ListToday(ctx context.Context) ([]db.Shift, error) {
	return s.store.ListShiftsByDate(ctx, s.now().Format(db.DateLayout))
}

// CreateSlotToday adds a free slot for today, rejecting duplicates of the
// same doctor and type.
func (s *Service) CreateSlotToday(ctx context.Context, doctorName, shiftType string) (bool, error) {
	today := s.now().Format(db.DateLayout)
	existing, err := s.store.ListShiftsByDate(ctx, today)
	if err != nil {
		return false, err
	}
	for _, sh := range existing {
		if sh.DoctorName == doctorName && sh.Type == shiftType {
			return false, nil
		}
	}
	if err := s.store.CreateShiftSlot(ctx, doctorName, today, shiftType); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteSlotToday removes a slot, but only from today's schedule so
// historical records stay intact.
func (s *Service) DeleteSlotToday(ctx context.Context, shiftID int64) (bool, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return false, err
	}
	if shift == nil || shift.Date != s.now().Format(db.DateLayout) {
		return false, nil
	}
	return s.store.DeleteShift(ctx, shiftID)
}
