// Package reports computes per-worker survey statistics. Read-only: it
// aggregates answers and shifts into period-bucketed rollups and sends the
// formatted result to each worker.
package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/notify"
)

// MaxMessageLen is the transport's hard message size; long reports are
// chunked at this boundary without ever splitting a line.
const MaxMessageLen = 4096

// Aggregation windows, in emission order. Month goes first so the
// duplicate-window suppression keeps the narrowest bucket.
var periods = []string{"Month", "Half-year", "All time"}

type Store interface {
	ListWorkers(ctx context.Context) ([]db.Worker, error)
	ListAnswers(ctx context.Context) ([]db.Answer, error)
	ListShifts(ctx context.Context) ([]db.Shift, error)
	GetSurveyByName(ctx context.Context, name string) (*db.Survey, error)
}

type Service struct {
	store    Store
	notifier notify.Notifier
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(store Store, notifier notify.Notifier, log *zap.Logger) *Service {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return &Service{store: store, notifier: notifier, log: log, loc: loc, now: time.Now}
}

// SendMonthlyReports builds and delivers one report per worker that has
// any data. A delivery failure for one worker never aborts the batch.
func (s *Service) SendMonthlyReports(ctx context.Context) error {
	now := s.now().In(s.loc)

	workers, err := s.store.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return fmt.Errorf("list shifts: %w", err)
	}

	surveysByName, err := s.collectSurveys(ctx, answers)
	if err != nil {
		return err
	}
	answersByObject := groupAnswersByObject(answers)
	shiftsByAssistant := s.groupShiftsLastMonth(shifts, now)

	sent, skipped := 0, 0
	for _, worker := range workers {
		workerAnswers := answersByObject[worker.FullName]
		workerShifts := shiftsByAssistant[worker.ID]
		if len(workerAnswers) == 0 && len(workerShifts) == 0 {
			skipped++
			continue
		}

		messages := s.BuildWorkerReport(workerAnswers, surveysByName, workerShifts, now)
		if len(messages) == 0 {
			skipped++
			continue
		}

		chatID, err := strconv.ParseInt(worker.ChatID, 10, 64)
		if err != nil {
			skipped++
			s.log.Warn("report skipped: worker not registered",
				zap.String("worker", worker.FullName))
			continue
		}

		delivered := true
		for _, message := range messages {
			for _, chunk := range SplitMessage(message, MaxMessageLen) {
				if err := s.notifier.SendText(chatID, chunk); err != nil {
					s.log.Error("report delivery failed",
						zap.String("worker", worker.FullName), zap.Error(err))
					delivered = false
					break
				}
			}
			if !delivered {
				break
			}
		}
		if delivered {
			sent++
			s.log.Info("report sent", zap.String("worker", worker.FullName))
		}
	}

	s.log.Info("reports done", zap.Int("sent", sent), zap.Int("skipped", skipped))
	return nil
}

func (s *Service) collectSurveys(ctx context.Context, answers []db.Answer) (map[string]*db.Survey, error) {
	byName := make(map[string]*db.Survey)
	for _, a := range answers {
		if _, done := byName[a.Survey]; done {
			continue
		}
		sv, err := s.store.GetSurveyByName(ctx, a.Survey)
		if err != nil {
			return nil, fmt.Errorf("load survey %q: %w", a.Survey, err)
		}
		byName[a.Survey] = sv
	}
	return byName, nil
}

func groupAnswersByObject(answers []db.Answer) map[string][]db.Answer {
	grouped := make(map[string][]db.Answer)
	for _, a := range answers {
		grouped[a.Object] = append(grouped[a.Object], a)
	}
	return grouped
}

// groupShiftsLastMonth counts trailing-30-day shifts per assistant, keyed
// by the doctor they helped.
func (s *Service) groupShiftsLastMonth(shifts []db.Shift, now time.Time) map[int64]map[string]int {
	cutoff := now.AddDate(0, 0, -30)
	result := make(map[int64]map[string]int)
	for _, shift := range shifts {
		if !shift.AssistantID.Valid {
			continue
		}
		date, ok := s.parseDate(shift.Date)
		if !ok || date.Before(cutoff) {
			continue
		}
		id := shift.AssistantID.Int64
		if result[id] == nil {
			result[id] = make(map[string]int)
		}
		result[id][shift.DoctorName]++
	}
	return result
}

// BuildWorkerReport produces one formatted section per window. A window is
// emitted only if it has score data, or (Month) open-text/shift data, and
// windows whose aggregated scores duplicate an already-emitted window are
// suppressed.
func (s *Service) BuildWorkerReport(
	answers []db.Answer,
	surveysByName map[string]*db.Survey,
	shiftCounts map[string]int,
	now time.Time,
) []string {
	oneMonthAgo := now.AddDate(0, 0, -30)
	sixMonthsAgo := now.AddDate(0, 0, -180)

	// period -> survey title -> question -> scores
	results := make(map[string]map[string]map[string][]int)
	for _, p := range periods {
		results[p] = make(map[string]map[string][]int)
	}
	openAnswers := make(map[string][][2]string)

	addScore := func(period, title, question string, score int) {
		if results[period][title] == nil {
			results[period][title] = make(map[string][]int)
		}
		results[period][title][question] = append(results[period][title][question], score)
	}

	for _, ans := range answers {
		sv := surveysByName[ans.Survey]
		if sv == nil {
			continue
		}
		date, ok := s.parseDate(ans.SurveyDate)
		if !ok {
			continue
		}

		for i := 1; i <= db.QuestionCount; i++ {
			qText, qType := sv.Question(i)
			qText, _, _ = strings.Cut(qText, "\n")
			raw := ans.AnswerAt(i)

			switch qType {
			case db.QuestionInt:
				score, err := strconv.Atoi(strings.TrimSpace(raw))
				if err != nil || score < 1 || score > 5 {
					// Malformed historical data is excluded, not fatal.
					continue
				}
				if !date.Before(oneMonthAgo) {
					addScore("Month", sv.Speciality, qText, score)
				}
				if !date.Before(sixMonthsAgo) {
					addScore("Half-year", sv.Speciality, qText, score)
				}
				addScore("All time", sv.Speciality, qText, score)
			case db.QuestionStr:
				if date.Before(oneMonthAgo) {
					continue
				}
				if trimmed := strings.TrimSpace(raw); trimmed != "" {
					openAnswers[sv.Speciality] = append(openAnswers[sv.Speciality],
						[2]string{strings.TrimSpace(qText), trimmed})
				}
			}
		}
	}

	var messages []string
	seen := make(map[string]bool)

	for _, period := range periods {
		surveys := results[period]
		hasScores := len(surveys) > 0
		hasMonthExtras := period == "Month" && (len(openAnswers) > 0 || len(shiftCounts) > 0)
		if !hasScores && !hasMonthExtras {
			continue
		}
		serialized := serializeScores(surveys)
		if hasScores && seen[serialized] {
			continue
		}
		if hasScores {
			seen[serialized] = true
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Survey results — %s:\n\n", period)

		for _, title := range sortedKeys(surveys) {
			fmt.Fprintf(&b, "— Survey: %s\n", title)
			questions := surveys[title]
			for _, question := range sortedKeys(questions) {
				scores := questions[question]
				fmt.Fprintf(&b, "• %s\n %s / 5 (%d answers)\n\n",
					question, formatAverage(scores), len(scores))
			}
		}

		if period == "Month" && len(openAnswers) > 0 {
			b.WriteString("— Open answers:\n")
			for _, title := range sortedKeys(openAnswers) {
				fmt.Fprintf(&b, "\nSurvey: %s\n", title)
				grouped := make(map[string][]string)
				var order []string
				for _, qa := range openAnswers[title] {
					if _, dup := grouped[qa[0]]; !dup {
						order = append(order, qa[0])
					}
					grouped[qa[0]] = append(grouped[qa[0]], qa[1])
				}
				for _, question := range order {
					b.WriteString(question + "\n")
					for _, answer := range grouped[question] {
						b.WriteString("    - " + answer + "\n")
					}
					b.WriteString("\n")
				}
			}
		}

		if period == "Month" && len(shiftCounts) > 0 {
			b.WriteString("\n— Shifts helped with this month:\n")
			for _, doctor := range sortedKeys(shiftCounts) {
				fmt.Fprintf(&b, "  %s — %d shift(s)\n", doctor, shiftCounts[doctor])
			}
		}

		messages = append(messages, strings.TrimSpace(b.String()))
	}

	return messages
}

func (s *Service) parseDate(value string) (time.Time, bool) {
	t, err := time.ParseInLocation(db.DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatAverage(scores []int) string {
	sum := 0
	for _, v := range scores {
		sum += v
	}
	avg := math.Round(float64(sum)/float64(len(scores))*100) / 100
	return strconv.FormatFloat(avg, 'f', -1, 64)
}

// serializeScores builds an order-independent fingerprint of a window's
// aggregated scores, used to suppress duplicate windows.
func serializeScores(surveys map[string]map[string][]int) string {
	var entries []string
	for title, questions := range surveys {
		for question, scores := range questions {
			sorted := append([]int(nil), scores...)
			sort.Ints(sorted)
			entries = append(entries, fmt.Sprintf("%s|%s|%v", title, question, sorted))
		}
	}
	sort.Strings(entries)
	return strings.Join(entries, ";")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SplitMessage chunks text at the size boundary on line boundaries. A
// single line longer than the limit becomes its own chunk rather than
// being split.
func SplitMessage(text string, maxLen int) []string {
	lines := strings.Split(text, "\n")
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range lines {
		lineLen := len([]rune(line))
		extra := lineLen
		if currentLen > 0 {
			extra++ // joining newline
		}
		if currentLen > 0 && currentLen+extra > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
			extra = lineLen
		}
		if currentLen > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		currentLen += extra
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
