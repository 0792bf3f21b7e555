package db

import (
	"context"
	"database/sql"
	"errors"
)

// Worker (Сотрудник)
type Worker struct {
	ID         int64  `db:"id" json:"id"`
	FullName   string `db:"full_name" json:"fullName"`
	FileID     string `db:"file_id" json:"fileId"`
	ChatID     string `db:"chat_id" json:"chatId"`
	Speciality string `db:"speciality" json:"speciality"`
	Phone      string `db:"phone" json:"phone"`
}

// Registered reports whether a messaging handle has been bound.
func (w *Worker) Registered() bool {
	return w.ChatID != ""
}

func (s *Storage) CreateWorker(ctx context.Context, w *Worker) error {
	query := `
        INSERT INTO workers (full_name, file_id, chat_id, speciality, phone)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`
	return s.db.QueryRowContext(ctx, query,
		w.FullName, w.FileID, w.ChatID, w.Speciality, w.Phone).Scan(&w.ID)
}

func (s *Storage) GetWorker(ctx context.Context, id int64) (*Worker, error) {
	w := &Worker{}
	query := `SELECT * FROM workers WHERE id=$1`
	err := s.db.GetContext(ctx, w, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *Storage) GetWorkerByFullName(ctx context.Context, fullName string) (*Worker, error) {
	w := &Worker{}
	query := `SELECT * FROM workers WHERE full_name=$1`
	err := s.db.GetContext(ctx, w, query, fullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *Storage) GetWorkerByChatID(ctx context.Context, chatID string) (*Worker, error) {
	w := &Worker{}
	query := `SELECT * FROM workers WHERE chat_id=$1`
	err := s.db.GetContext(ctx, w, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *Storage) ListWorkers(ctx context.Context) ([]Worker, error) {
	workers := []Worker{}
	query := `SELECT * FROM workers ORDER BY full_name ASC`
	err := s.db.SelectContext(ctx, &workers, query)
	return workers, err
}

func (s *Storage) ListUnregisteredWorkers(ctx context.Context) ([]Worker, error) {
	workers := []Worker{}
	query := `SELECT * FROM workers WHERE chat_id = '' ORDER BY full_name ASC`
	err := s.db.SelectContext(ctx, &workers, query)
	return workers, err
}

// BindChatID binds a messaging handle to a worker. First registration wins:
// the update applies only while the worker has no chat id and no other
// worker already holds the same one. Returns false when either check fails.
func (s *Storage) BindChatID(ctx context.Context, workerID int64, chatID string) (bool, error) {
	query := `
        UPDATE workers SET chat_id = $1
        WHERE id = $2 AND chat_id = ''
          AND NOT EXISTS (SELECT 1 FROM workers WHERE chat_id = $1)`
	res, err := s.db.ExecContext(ctx, query, chatID, workerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) SetWorkerPhoto(ctx context.Context, workerID int64, fileID string) error {
	query := `UPDATE workers SET file_id = $1 WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, fileID, workerID)
	return err
}
