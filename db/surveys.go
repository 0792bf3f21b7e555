package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// QuestionCount is fixed by the survey template format.
const QuestionCount = 5

// Survey (Анкета): шаблон из пяти вопросов, ключ — специальность/название.
type Survey struct {
	ID            int64  `db:"id" json:"id"`
	Speciality    string `db:"speciality" json:"speciality"`
	Question1     string `db:"question1" json:"question1"`
	Question1Type string `db:"question1_type" json:"question1Type"`
	Question2     string `db:"question2" json:"question2"`
	Question2Type string `db:"question2_type" json:"question2Type"`
	Question3     string `db:"question3" json:"question3"`
	Question3Type string `db:"question3_type" json:"question3Type"`
	Question4     string `db:"question4" json:"question4"`
	Question4Type string `db:"question4_type" json:"question4Type"`
	Question5     string `db:"question5" json:"question5"`
	Question5Type string `db:"question5_type" json:"question5Type"`
}

// Question returns the text and type of the 1-based question slot.
func (s *Survey) Question(index int) (text, qtype string) {
	switch index {
	case 1:
		return s.Question1, s.Question1Type
	case 2:
		return s.Question2, s.Question2Type
	case 3:
		return s.Question3, s.Question3Type
	case 4:
		return s.Question4, s.Question4Type
	case 5:
		return s.Question5, s.Question5Type
	}
	return "", ""
}

func (s *Storage) GetSurveyByName(ctx context.Context, name string) (*Survey, error) {
	sv := &Survey{}
	query := `SELECT * FROM surveys WHERE speciality=$1`
	err := s.db.GetContext(ctx, sv, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sv, err
}

func (s *Storage) ListSurveys(ctx context.Context) ([]Survey, error) {
	surveys := []Survey{}
	err := s.db.SelectContext(ctx, &surveys, `SELECT * FROM surveys ORDER BY id ASC`)
	return surveys, err
}

// ReplaceAllSurveys swaps the whole template table in one transaction.
// Import is the only writer; historical answers keep their own copy of the
// question text, so replacing templates never touches them.
func (s *Storage) ReplaceAllSurveys(ctx context.Context, surveys []Survey) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM surveys`); err != nil {
		return fmt.Errorf("clear surveys: %w", err)
	}
	query := `
        INSERT INTO surveys
            (id, speciality,
             question1, question1_type, question2, question2_type,
             question3, question3_type, question4, question4_type,
             question5, question5_type)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for _, sv := range surveys {
		_, err := tx.ExecContext(ctx, query,
			sv.ID, sv.Speciality,
			sv.Question1, sv.Question1Type, sv.Question2, sv.Question2Type,
			sv.Question3, sv.Question3Type, sv.Question4, sv.Question4Type,
			sv.Question5, sv.Question5Type)
		if err != nil {
			return fmt.Errorf("insert survey %d: %w", sv.ID, err)
		}
	}
	return tx.Commit()
}
