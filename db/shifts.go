package db

import (
	"context"
	"database/sql"
	"errors"
)

// Shift (Смена): слот врача на дату и тип, опционально занятый ассистентом.
// manual=true означает слот, созданный ассистентом под врача вне
// импортированного расписания.
type Shift struct {
	ID            int64         `db:"id" json:"id"`
	AssistantID   sql.NullInt64 `db:"assistant_id" json:"assistantId"`
	AssistantName string        `db:"assistant_name" json:"assistantName"`
	DoctorName    string        `db:"doctor_name" json:"doctorName"`
	Date          string        `db:"date" json:"date"`
	Type          string        `db:"type" json:"type"`
	Manual        bool          `db:"manual" json:"manual"`
}

// Claimed reports whether an assistant holds the slot.
func (s *Shift) Claimed() bool {
	return s.AssistantID.Valid
}

func (s *Storage) CreateShiftSlot(ctx context.Context, doctorName, date, shiftType string) error {
	query := `
        INSERT INTO shifts (doctor_name, date, type, manual)
        VALUES ($1, $2, $3, FALSE)`
	_, err := s.db.ExecContext(ctx, query, doctorName, date, shiftType)
	return err
}

// BulkCreateShiftSlots inserts imported schedule rows in one transaction.
func (s *Storage) BulkCreateShiftSlots(ctx context.Context, slots []Shift) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO shifts (doctor_name, date, type, manual)
        VALUES ($1, $2, $3, FALSE)`
	for _, slot := range slots {
		if _, err := tx.ExecContext(ctx, query, slot.DoctorName, slot.Date, slot.Type); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Storage) GetShift(ctx context.Context, id int64) (*Shift, error) {
	sh := &Shift{}
	query := `SELECT * FROM shifts WHERE id=$1`
	err := s.db.GetContext(ctx, sh, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sh, err
}

func (s *Storage) ListFreeShifts(ctx context.Context, date, shiftType string) ([]Shift, error) {
	shifts := []Shift{}
	query := `
        SELECT * FROM shifts
        WHERE date = $1 AND type = $2 AND assistant_id IS NULL
        ORDER BY doctor_name ASC`
	err := s.db.SelectContext(ctx, &shifts, query, date, shiftType)
	return shifts, err
}

func (s *Storage) GetShiftForAssistant(ctx context.Context, assistantID int64, date, shiftType string) (*Shift, error) {
	sh := &Shift{}
	query := `
        SELECT * FROM shifts
        WHERE assistant_id = $1 AND date = $2 AND type = $3`
	err := s.db.GetContext(ctx, sh, query, assistantID, date, shiftType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sh, err
}

// ClaimShift assigns the slot to the assistant in one conditional update:
// the slot must still be free and the assistant must not already hold a
// slot of the same date+type. Exactly one of two concurrent claimers wins.
func (s *Storage) ClaimShift(ctx context.Context, assistantID int64, assistantName string, shiftID int64) (bool, error) {
	query := `
        UPDATE shifts
        SET assistant_id = $1, assistant_name = $2, manual = FALSE
        WHERE id = $3 AND assistant_id IS NULL
          AND NOT EXISTS (
              SELECT 1 FROM shifts busy
              WHERE busy.assistant_id = $1
                AND busy.date = shifts.date AND busy.type = shifts.type)`
	res, err := s.db.ExecContext(ctx, query, assistantID, assistantName, shiftID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CreateManualShift creates an ad-hoc claimed slot for a doctor missing
// from the imported schedule. The insert is conditional on the assistant
// having no slot of that date+type yet.
func (s *Storage) CreateManualShift(ctx context.Context, assistantID int64, assistantName, doctorName, date, shiftType string) (bool, error) {
	query := `
        INSERT INTO shifts (assistant_id, assistant_name, doctor_name, date, type, manual)
        SELECT $1, $2, $3, $4, $5, TRUE
        WHERE NOT EXISTS (
            SELECT 1 FROM shifts
            WHERE assistant_id = $1 AND date = $4 AND type = $5)`
	res, err := s.db.ExecContext(ctx, query, assistantID, assistantName, doctorName, date, shiftType)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseShift clears the assistant fields, making the slot free again.
// Manual rows are kept and become reusable like schedule-driven ones.
func (s *Storage) ReleaseShift(ctx context.Context, assistantID int64, date, shiftType string) error {
	query := `
        UPDATE shifts
        SET assistant_id = NULL, assistant_name = ''
        WHERE assistant_id = $1 AND date = $2 AND type = $3`
	_, err := s.db.ExecContext(ctx, query, assistantID, date, shiftType)
	return err
}

func (s *Storage) DeleteShift(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) ListShiftsByDate(ctx context.Context, date string) ([]Shift, error) {
	shifts := []Shift{}
	query := `SELECT * FROM shifts WHERE date = $1 ORDER BY type ASC, doctor_name ASC`
	err := s.db.SelectContext(ctx, &shifts, query, date)
	return shifts, err
}

func (s *Storage) ListShifts(ctx context.Context) ([]Shift, error) {
	shifts := []Shift{}
	err := s.db.SelectContext(ctx, &shifts, `SELECT * FROM shifts ORDER BY id ASC`)
	return shifts, err
}
