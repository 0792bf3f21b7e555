package db

import (
	"context"
	"database/sql"
	"errors"
)

// Pair (Пара опроса): subject отвечает про object по анкете survey.
type Pair struct {
	ID      int64  `db:"id" json:"id"`
	Subject string `db:"subject" json:"subject"`
	Object  string `db:"object" json:"object"`
	Survey  string `db:"survey" json:"survey"`
	Weekday string `db:"weekday" json:"weekday"`
	Date    string `db:"date" json:"date"`
	Status  string `db:"status" json:"status"`
}

func (s *Storage) CreatePair(ctx context.Context, p *Pair) error {
	if p.Status == "" {
		p.Status = PairReady
	}
	query := `
        INSERT INTO pairs (subject, object, survey, weekday, date, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`
	return s.db.QueryRowContext(ctx, query,
		p.Subject, p.Object, p.Survey, p.Weekday, p.Date, p.Status).Scan(&p.ID)
}

func (s *Storage) GetPair(ctx context.Context, id int64) (*Pair, error) {
	p := &Pair{}
	query := `SELECT * FROM pairs WHERE id=$1`
	err := s.db.GetContext(ctx, p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListReadyPairsByDate returns ready pairs dated today or earlier, oldest
// id first. Pairs from prior runs that were never delivered still qualify.
func (s *Storage) ListReadyPairsByDate(ctx context.Context, today string) ([]Pair, error) {
	pairs := []Pair{}
	query := `
        SELECT * FROM pairs
        WHERE status = 'ready'
          AND to_date(date, 'DD.MM.YYYY') <= to_date($1, 'DD.MM.YYYY')
        ORDER BY id ASC`
	err := s.db.SelectContext(ctx, &pairs, query, today)
	return pairs, err
}

// NextReadyPairForSubject picks the next pair for the chained survey flow.
// The ascending-id tie-break is a compatibility contract.
func (s *Storage) NextReadyPairForSubject(ctx context.Context, subject string) (*Pair, error) {
	p := &Pair{}
	query := `
        SELECT * FROM pairs
        WHERE subject = $1 AND status = 'ready'
        ORDER BY id ASC
        LIMIT 1`
	err := s.db.GetContext(ctx, p, query, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Storage) HasInProgressPair(ctx context.Context, subject string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM pairs WHERE subject = $1 AND status = 'in_progress'`
	err := s.db.GetContext(ctx, &count, query, subject)
	return count > 0, err
}

func (s *Storage) ListInProgressPairs(ctx context.Context) ([]Pair, error) {
	pairs := []Pair{}
	query := `SELECT * FROM pairs WHERE status = 'in_progress' ORDER BY id ASC`
	err := s.db.SelectContext(ctx, &pairs, query)
	return pairs, err
}

// SetPairStatus transitions a pair from one status to another. The update
// is conditional on the current status so two concurrent transitions cannot
// both win; returns false if the pair was not in the expected status.
func (s *Storage) SetPairStatus(ctx context.Context, pairID int64, from, to string) (bool, error) {
	query := `UPDATE pairs SET status = $1 WHERE id = $2 AND status = $3`
	res, err := s.db.ExecContext(ctx, query, to, pairID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ResetInProgressPairs forces every in_progress pair back to ready. Used
// for crash recovery before each dispatch run.
func (s *Storage) ResetInProgressPairs(ctx context.Context) (int64, error) {
	query := `UPDATE pairs SET status = 'ready' WHERE status = 'in_progress'`
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Storage) DeleteAllPairs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pairs`)
	return err
}
