package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Cabinet (Кабинет): именованное расположение инструментов.
type Cabinet struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"isActive"`
}

// Instrument (Инструмент): находится ровно в одном кабинете.
type Instrument struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CabinetID int64  `db:"cabinet_id" json:"cabinetId"`
	IsActive  bool   `db:"is_active" json:"isActive"`
}

// InstrumentMove (Перемещение): неизменяемая запись одной перестановки с
// фотографиями до и после.
type InstrumentMove struct {
	ID            int64  `db:"id" json:"id"`
	InstrumentID  int64  `db:"instrument_id" json:"instrumentId"`
	FromCabinetID int64  `db:"from_cabinet_id" json:"fromCabinetId"`
	ToCabinetID   int64  `db:"to_cabinet_id" json:"toCabinetId"`
	BeforePhotoID string `db:"before_photo_id" json:"beforePhotoId"`
	AfterPhotoID  string `db:"after_photo_id" json:"afterPhotoId"`
	MovedByChatID string `db:"moved_by_chat_id" json:"movedByChatId"`
	MovedAt       string `db:"moved_at" json:"movedAt"`
}

func (s *Storage) CreateCabinet(ctx context.Context, c *Cabinet) error {
	query := `
        INSERT INTO cabinets (name, is_active)
        VALUES ($1, $2)
        RETURNING id`
	return s.db.QueryRowContext(ctx, query, c.Name, c.IsActive).Scan(&c.ID)
}

func (s *Storage) GetCabinet(ctx context.Context, id int64) (*Cabinet, error) {
	c := &Cabinet{}
	query := `SELECT * FROM cabinets WHERE id=$1`
	err := s.db.GetContext(ctx, c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Storage) ListCabinets(ctx context.Context, includeArchived bool) ([]Cabinet, error) {
	cabinets := []Cabinet{}
	query := `SELECT * FROM cabinets`
	if !includeArchived {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name ASC`
	err := s.db.SelectContext(ctx, &cabinets, query)
	return cabinets, err
}

func (s *Storage) RenameCabinet(ctx context.Context, id int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE cabinets SET name=$1 WHERE id=$2`, name, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) SetCabinetActive(ctx context.Context, id int64, active bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE cabinets SET is_active=$1 WHERE id=$2`, active, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteCabinet removes a cabinet unless any instrument still references
// it. The guard lives in the statement itself so a concurrent instrument
// insert cannot slip between check and delete.
func (s *Storage) DeleteCabinet(ctx context.Context, id int64) (bool, error) {
	query := `
        DELETE FROM cabinets
        WHERE id = $1
          AND NOT EXISTS (SELECT 1 FROM instruments WHERE cabinet_id = $1)`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) CabinetHasInstruments(ctx context.Context, id int64) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM instruments WHERE cabinet_id = $1`
	err := s.db.GetContext(ctx, &count, query, id)
	return count > 0, err
}

func (s *Storage) CreateInstrument(ctx context.Context, i *Instrument) error {
	query := `
        INSERT INTO instruments (name, cabinet_id, is_active)
        VALUES ($1, $2, $3)
        RETURNING id`
	return s.db.QueryRowContext(ctx, query, i.Name, i.CabinetID, i.IsActive).Scan(&i.ID)
}

func (s *Storage) GetInstrument(ctx context.Context, id int64) (*Instrument, error) {
	i := &Instrument{}
	query := `SELECT * FROM instruments WHERE id=$1`
	err := s.db.GetContext(ctx, i, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func (s *Storage) ListInstrumentsByCabinet(ctx context.Context, cabinetID int64, includeArchived bool) ([]Instrument, error) {
	instruments := []Instrument{}
	query := `SELECT * FROM instruments WHERE cabinet_id = $1`
	if !includeArchived {
		query += ` AND is_active`
	}
	query += ` ORDER BY name ASC`
	err := s.db.SelectContext(ctx, &instruments, query, cabinetID)
	return instruments, err
}

func (s *Storage) RenameInstrument(ctx context.Context, id int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE instruments SET name=$1 WHERE id=$2`, name, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) SetInstrumentActive(ctx context.Context, id int64, active bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE instruments SET is_active=$1 WHERE id=$2`, active, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) DeleteInstrument(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instruments WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// TransferInstrument relocates the instrument and appends the audit record
// in one transaction. The location update is conditional on the instrument
// still being in the source cabinet; a stale transfer affects zero rows and
// the whole transaction rolls back.
func (s *Storage) TransferInstrument(ctx context.Context, move *InstrumentMove) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE instruments SET cabinet_id = $1 WHERE id = $2 AND cabinet_id = $3`,
		move.ToCabinetID, move.InstrumentID, move.FromCabinetID)
	if err != nil {
		return false, fmt.Errorf("update instrument location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}

	query := `
        INSERT INTO instrument_moves
            (instrument_id, from_cabinet_id, to_cabinet_id,
             before_photo_id, after_photo_id, moved_by_chat_id, moved_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`
	err = tx.QueryRowContext(ctx, query,
		move.InstrumentID, move.FromCabinetID, move.ToCabinetID,
		move.BeforePhotoID, move.AfterPhotoID, move.MovedByChatID, move.MovedAt).
		Scan(&move.ID)
	if err != nil {
		return false, fmt.Errorf("insert move record: %w", err)
	}
	return true, tx.Commit()
}

func (s *Storage) ListRecentMoves(ctx context.Context, limit int) ([]InstrumentMove, error) {
	moves := []InstrumentMove{}
	query := `SELECT * FROM instrument_moves ORDER BY id DESC LIMIT $1`
	err := s.db.SelectContext(ctx, &moves, query, limit)
	return moves, err
}

func (s *Storage) GetMove(ctx context.Context, id int64) (*InstrumentMove, error) {
	m := &InstrumentMove{}
	query := `SELECT * FROM instrument_moves WHERE id=$1`
	err := s.db.GetContext(ctx, m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}
