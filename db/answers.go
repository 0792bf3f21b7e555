package db

import (
	"context"
)

// Answer (Ответ): завершённый опрос одной пары. Текст вопросов копируется
// из анкеты в момент завершения, чтобы поздние правки шаблона не меняли
// историю. Запись создаётся один раз и не изменяется.
type Answer struct {
	ID          int64  `db:"id" json:"id"`
	Subject     string `db:"subject" json:"subject"`
	Object      string `db:"object" json:"object"`
	Survey      string `db:"survey" json:"survey"`
	SurveyDate  string `db:"survey_date" json:"surveyDate"`
	CompletedAt string `db:"completed_at" json:"completedAt"`
	Question1   string `db:"question1" json:"question1"`
	Answer1     string `db:"answer1" json:"answer1"`
	Question2   string `db:"question2" json:"question2"`
	Answer2     string `db:"answer2" json:"answer2"`
	Question3   string `db:"question3" json:"question3"`
	Answer3     string `db:"answer3" json:"answer3"`
	Question4   string `db:"question4" json:"question4"`
	Answer4     string `db:"answer4" json:"answer4"`
	Question5   string `db:"question5" json:"question5"`
	Answer5     string `db:"answer5" json:"answer5"`
}

// AnswerAt returns the raw answer of the 1-based question slot.
func (a *Answer) AnswerAt(index int) string {
	switch index {
	case 1:
		return a.Answer1
	case 2:
		return a.Answer2
	case 3:
		return a.Answer3
	case 4:
		return a.Answer4
	case 5:
		return a.Answer5
	}
	return ""
}

func (s *Storage) CreateAnswer(ctx context.Context, a *Answer) error {
	query := `
        INSERT INTO answers
            (subject, object, survey, survey_date, completed_at,
             question1, answer1, question2, answer2, question3, answer3,
             question4, answer4, question5, answer5)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id`
	return s.db.QueryRowContext(ctx, query,
		a.Subject, a.Object, a.Survey, a.SurveyDate, a.CompletedAt,
		a.Question1, a.Answer1, a.Question2, a.Answer2, a.Question3, a.Answer3,
		a.Question4, a.Answer4, a.Question5, a.Answer5).Scan(&a.ID)
}

func (s *Storage) ListAnswers(ctx context.Context) ([]Answer, error) {
	answers := []Answer{}
	err := s.db.SelectContext(ctx, &answers, `SELECT * FROM answers ORDER BY id ASC`)
	return answers, err
}
