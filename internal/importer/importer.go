// Package importer loads worker/pair/survey/shift rows from the bulk
// gateway and pushes answer/shift exports back out. Rows are handled
// defensively: short rows are padded with empty cells, blank keys and
// non-numeric survey ids are skipped with a warning, and a bad row never
// stops the rest of the import.
package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/sheets"
)

type Store interface {
	ListWorkers(ctx context.Context) ([]db.Worker, error)
	CreateWorker(ctx context.Context, w *db.Worker) error
	BindChatID(ctx context.Context, workerID int64, chatID string) (bool, error)
	SetWorkerPhoto(ctx context.Context, workerID int64, fileID string) error
	CreatePair(ctx context.Context, p *db.Pair) error
	ReplaceAllSurveys(ctx context.Context, surveys []db.Survey) error
	BulkCreateShiftSlots(ctx context.Context, slots []db.Shift) error
	ListAnswers(ctx context.Context) ([]db.Answer, error)
	ListShiftsByDate(ctx context.Context, date string) ([]db.Shift, error)
}

type Service struct {
	gateway sheets.Gateway
	store   Store
	log     *zap.Logger
	now     func() time.Time
}

func NewService(gateway sheets.Gateway, store Store, log *zap.Logger) *Service {
	return &Service{gateway: gateway, store: store, log: log, now: time.Now}
}

// cell returns the trimmed value at index i, or "" when the row is short.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// SyncWorkers upserts worker rows: new names are created, known names only
// get empty chat_id/photo fields filled in. Returns the number created.
func (s *Service) SyncWorkers(ctx context.Context) (int, error) {
	workers, err := s.store.ListWorkers(ctx)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]db.Worker, len(workers))
	for _, w := range workers {
		existing[w.FullName] = w
	}

	rows, err := s.gateway.ReadWorkers()
	if err != nil {
		return 0, err
	}

	created := 0
	for _, row := range rows {
		fullName := cell(row, 0)
		if fullName == "" {
			continue
		}
		fileID := cell(row, 1)
		chatID := cell(row, 2)
		speciality := cell(row, 3)
		phone := cell(row, 4)

		if worker, ok := existing[fullName]; ok {
			if chatID != "" && worker.ChatID == "" {
				if _, err := s.store.BindChatID(ctx, worker.ID, chatID); err != nil {
					s.log.Error("bind imported chat id failed",
						zap.String("worker", fullName), zap.Error(err))
				}
			}
			if fileID != "" && worker.FileID == "" {
				if err := s.store.SetWorkerPhoto(ctx, worker.ID, fileID); err != nil {
					s.log.Error("set imported photo failed",
						zap.String("worker", fullName), zap.Error(err))
				}
			}
			continue
		}

		worker := db.Worker{
			FullName:   fullName,
			FileID:     fileID,
			ChatID:     chatID,
			Speciality: speciality,
			Phone:      phone,
		}
		if err := s.store.CreateWorker(ctx, &worker); err != nil {
			s.log.Error("create worker failed", zap.String("worker", fullName), zap.Error(err))
			continue
		}
		created++
	}
	return created, nil
}

// SyncPairs creates pairs scheduled for the target date (today when empty).
func (s *Service) SyncPairs(ctx context.Context, targetDate string) (int, error) {
	if targetDate == "" {
		targetDate = s.now().Format(db.DateLayout)
	}
	rows, err := s.gateway.ReadPairs()
	if err != nil {
		return 0, err
	}

	created := 0
	for _, row := range rows {
		if cell(row, 4) != targetDate {
			continue
		}
		pair := db.Pair{
			Subject: cell(row, 0),
			Object:  cell(row, 1),
			Survey:  cell(row, 2),
			Weekday: cell(row, 3),
			Date:    cell(row, 4),
			Status:  db.PairReady,
		}
		if pair.Subject == "" || pair.Object == "" {
			continue
		}
		if err := s.store.CreatePair(ctx, &pair); err != nil {
			s.log.Error("create pair failed", zap.String("subject", pair.Subject), zap.Error(err))
			continue
		}
		created++
	}
	return created, nil
}

// SyncSurveys replaces the whole template table with the imported rows.
func (s *Service) SyncSurveys(ctx context.Context) (int, error) {
	rows, err := s.gateway.ReadSurveys()
	if err != nil {
		return 0, err
	}

	var surveys []db.Survey
	for _, row := range rows {
		idValue := cell(row, 0)
		id, err := strconv.ParseInt(idValue, 10, 64)
		if err != nil {
			s.log.Warn("skip survey row with non-numeric id", zap.String("id", idValue))
			continue
		}
		surveys = append(surveys, db.Survey{
			ID:            id,
			Speciality:    cell(row, 1),
			Question1:     cell(row, 2),
			Question1Type: cell(row, 3),
			Question2:     cell(row, 4),
			Question2Type: cell(row, 5),
			Question3:     cell(row, 6),
			Question3Type: cell(row, 7),
			Question4:     cell(row, 8),
			Question4Type: cell(row, 9),
			Question5:     cell(row, 10),
			Question5Type: cell(row, 11),
		})
	}

	if err := s.store.ReplaceAllSurveys(ctx, surveys); err != nil {
		return 0, err
	}
	return len(surveys), nil
}

// SyncShifts bulk-creates free schedule slots from (doctor, date, type)
// rows; incomplete rows are dropped.
func (s *Service) SyncShifts(ctx context.Context) (int, error) {
	rows, err := s.gateway.ReadShifts()
	if err != nil {
		return 0, err
	}

	var slots []db.Shift
	for _, row := range rows {
		doctorName := cell(row, 0)
		date := cell(row, 1)
		shiftType := cell(row, 2)
		if doctorName == "" || date == "" || shiftType == "" {
			continue
		}
		slots = append(slots, db.Shift{DoctorName: doctorName, Date: date, Type: shiftType})
	}
	if len(slots) == 0 {
		return 0, nil
	}
	if err := s.store.BulkCreateShiftSlots(ctx, slots); err != nil {
		return 0, err
	}
	return len(slots), nil
}

// SyncAll runs every import in order; the first failure stops the chain.
func (s *Service) SyncAll(ctx context.Context) error {
	if _, err := s.SyncWorkers(ctx); err != nil {
		return fmt.Errorf("sync workers: %w", err)
	}
	if _, err := s.SyncPairs(ctx, ""); err != nil {
		return fmt.Errorf("sync pairs: %w", err)
	}
	if _, err := s.SyncSurveys(ctx); err != nil {
		return fmt.Errorf("sync surveys: %w", err)
	}
	if _, err := s.SyncShifts(ctx); err != nil {
		return fmt.Errorf("sync shifts: %w", err)
	}
	return nil
}

// ExportAnswers writes the full answers table to the gateway.
func (s *Service) ExportAnswers(ctx context.Context) error {
	answers, err := s.store.ListAnswers(ctx)
	if err != nil {
		return err
	}
	headers := []string{
		"object", "subject", "survey", "survey_date", "completed_at",
		"question1", "answer1", "question2", "answer2", "question3", "answer3",
		"question4", "answer4", "question5", "answer5",
	}
	rows := make([][]string, 0, len(answers))
	for _, a := range answers {
		rows = append(rows, []string{
			a.Object, a.Subject, a.Survey, a.SurveyDate, a.CompletedAt,
			a.Question1, a.Answer1, a.Question2, a.Answer2, a.Question3, a.Answer3,
			a.Question4, a.Answer4, a.Question5, a.Answer5,
		})
	}
	return s.gateway.ExportAnswers(headers, rows)
}

// ExportShifts writes one day's schedule to the gateway (today when the
// date is empty).
func (s *Service) ExportShifts(ctx context.Context, date string) error {
	if date == "" {
		date = s.now().Format(db.DateLayout)
	}
	shifts, err := s.store.ListShiftsByDate(ctx, date)
	if err != nil {
		return err
	}
	headers := []string{"assistant_id", "assistant_name", "doctor_name", "date", "type", "manual"}
	rows := make([][]string, 0, len(shifts))
	for _, sh := range shifts {
		assistantID := ""
		if sh.AssistantID.Valid {
			assistantID = strconv.FormatInt(sh.AssistantID.Int64, 10)
		}
		manual := "Нет"
		if sh.Manual {
			manual = "Да"
		}
		rows = append(rows, []string{
			assistantID, sh.AssistantName, sh.DoctorName, sh.Date, sh.Type, manual,
		})
	}
	return s.gateway.ExportShifts(headers, rows)
}
