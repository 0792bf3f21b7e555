// Package survey drives pairs through the five-question flow and fans new
// surveys out to workers on each scheduled run.
package survey

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/commands"
	"clinicbot/internal/notify"
	"clinicbot/internal/session"
)

// AnswerTTL is the soft expiry on a pending question: a button pressed this
// long after the question was issued is rejected.
const AnswerTTL = 24 * time.Hour

const (
	msgThanks  = "Спасибо за обратную связь!"
	msgExpired = "Опрос устарел. Дождитесь следующей рассылки."
	msgUseKeys = "Пожалуйста, выберите оценку кнопкой под вопросом."
)

type Store interface {
	GetWorkerByFullName(ctx context.Context, fullName string) (*db.Worker, error)
	GetSurveyByName(ctx context.Context, name string) (*db.Survey, error)
	ListReadyPairsByDate(ctx context.Context, today string) ([]db.Pair, error)
	ListInProgressPairs(ctx context.Context) ([]db.Pair, error)
	NextReadyPairForSubject(ctx context.Context, subject string) (*db.Pair, error)
	HasInProgressPair(ctx context.Context, subject string) (bool, error)
	SetPairStatus(ctx context.Context, pairID int64, from, to string) (bool, error)
	ResetInProgressPairs(ctx context.Context) (int64, error)
	CreateAnswer(ctx context.Context, a *db.Answer) error
}

// Flow walks one worker through a survey, then chains to that worker's next
// ready pair until none remain.
type Flow struct {
	store    Store
	notifier notify.Notifier
	sessions *session.Manager
	log      *zap.Logger
	now      func() time.Time
}

func NewFlow(store Store, notifier notify.Notifier, sessions *session.Manager, log *zap.Logger) *Flow {
	return &Flow{
		store:    store,
		notifier: notifier,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// Begin loads the pair's survey template, opens a fresh session and sends
// question 1. The pair must already be in_progress.
func (f *Flow) Begin(ctx context.Context, chatID int64, pair db.Pair) error {
	sv, err := f.store.GetSurveyByName(ctx, pair.Survey)
	if err != nil {
		return fmt.Errorf("load survey %q: %w", pair.Survey, err)
	}
	if sv == nil {
		return fmt.Errorf("survey %q not found for pair %d", pair.Survey, pair.ID)
	}

	sess := f.sessions.StartSurvey(chatID, pair, *sv)

	// Photo of the rated colleague, when one is on file.
	object, err := f.store.GetWorkerByFullName(ctx, pair.Object)
	if err != nil {
		f.log.Warn("lookup rated worker failed",
			zap.String("object", pair.Object), zap.Error(err))
	}
	intro := fmt.Sprintf("Оцените, пожалуйста, работу сотрудника: %s", pair.Object)
	if object != nil && object.FileID != "" {
		if err := f.notifier.SendPhoto(chatID, object.FileID, intro); err != nil {
			f.log.Warn("send intro photo failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	} else {
		if err := f.notifier.SendText(chatID, intro); err != nil {
			f.log.Warn("send intro failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}

	return f.ask(chatID, sess, 1)
}

func (f *Flow) ask(chatID int64, sess *session.Survey, index int) error {
	text, qtype := sess.Survey.Question(index)
	sess.Step = index
	sess.IssuedAt = f.now()

	if qtype == db.QuestionInt {
		return f.notifier.SendRatingPrompt(chatID, text, index, sess.IssuedAt)
	}
	return f.notifier.SendText(chatID, text)
}

// SubmitRating handles a decoded rating button press.
func (f *Flow) SubmitRating(ctx context.Context, chatID int64, cmd commands.Rate) error {
	sess := f.sessions.Survey(chatID)
	if sess == nil {
		// Keyboard survived a restart; there is nothing to resume.
		return f.expire(chatID)
	}
	if f.now().Sub(cmd.IssuedAt) > AnswerTTL {
		return f.expire(chatID)
	}
	if cmd.Index < 1 || cmd.Index > db.QuestionCount {
		return f.expire(chatID)
	}
	if cmd.Index != sess.Step {
		if cmd.Index < sess.Step && sess.Answers[cmd.Index-1] != "" {
			// Double tap on an already answered question.
			return nil
		}
		return f.expire(chatID)
	}
	// A press for question N with question N-1 unanswered can only come
	// from a stale keyboard replayed after a reset.
	if cmd.Index > 1 && sess.Answers[cmd.Index-2] == "" {
		return f.expire(chatID)
	}
	// Keyboards only issue "1".."5"; anything else is a forged payload.
	// The session stays open so the real buttons keep working.
	if v, err := strconv.Atoi(cmd.Value); err != nil || v < 1 || v > 5 {
		return f.notifier.SendText(chatID, msgUseKeys)
	}

	sess.Answers[cmd.Index-1] = cmd.Value
	return f.advance(ctx, chatID, sess)
}

// SubmitText handles free-form input for the current str-typed question.
// Returns false when no survey is awaiting text, so the caller can route
// the message elsewhere.
func (f *Flow) SubmitText(ctx context.Context, chatID int64, text string) (bool, error) {
	sess := f.sessions.Survey(chatID)
	if sess == nil || sess.Step == 0 {
		return false, nil
	}
	_, qtype := sess.Survey.Question(sess.Step)
	if qtype == db.QuestionInt {
		return true, f.notifier.SendText(chatID, msgUseKeys)
	}
	if f.now().Sub(sess.IssuedAt) > AnswerTTL {
		return true, f.expire(chatID)
	}

	sess.Answers[sess.Step-1] = text
	return true, f.advance(ctx, chatID, sess)
}

func (f *Flow) advance(ctx context.Context, chatID int64, sess *session.Survey) error {
	if sess.Step < db.QuestionCount {
		return f.ask(chatID, sess, sess.Step+1)
	}
	return f.complete(ctx, chatID, sess)
}

// complete persists the answer, closes the pair and chains into the next
// ready pair for the same subject, if any.
func (f *Flow) complete(ctx context.Context, chatID int64, sess *session.Survey) error {
	pair := sess.Pair
	answer := f.buildAnswer(sess)
	if err := f.store.CreateAnswer(ctx, answer); err != nil {
		// Operator problem, not the worker's: keep the flow moving.
		f.log.Error("save answer failed",
			zap.Int64("pair_id", pair.ID),
			zap.String("subject", pair.Subject),
			zap.Error(err))
	}

	ok, err := f.store.SetPairStatus(ctx, pair.ID, db.PairInProgress, db.PairDone)
	if err != nil {
		f.log.Error("mark pair done failed", zap.Int64("pair_id", pair.ID), zap.Error(err))
	} else if !ok {
		f.log.Warn("pair was not in_progress at completion", zap.Int64("pair_id", pair.ID))
	}

	f.sessions.ClearSurvey(chatID)

	next, err := f.store.NextReadyPairForSubject(ctx, pair.Subject)
	if err != nil {
		f.log.Error("lookup next pair failed", zap.String("subject", pair.Subject), zap.Error(err))
		next = nil
	}
	if next != nil {
		ok, err := f.store.SetPairStatus(ctx, next.ID, db.PairReady, db.PairInProgress)
		if err != nil {
			f.log.Error("mark next pair failed", zap.Int64("pair_id", next.ID), zap.Error(err))
		} else if ok {
			return f.Begin(ctx, chatID, *next)
		}
	}
	return f.notifier.SendText(chatID, msgThanks)
}

func (f *Flow) buildAnswer(sess *session.Survey) *db.Answer {
	q := func(i int) string {
		text, _ := sess.Survey.Question(i)
		return text
	}
	return &db.Answer{
		Subject:     sess.Pair.Subject,
		Object:      sess.Pair.Object,
		Survey:      sess.Pair.Survey,
		SurveyDate:  sess.Pair.Date,
		CompletedAt: f.now().Format(db.TimestampLayout),
		Question1:   q(1),
		Answer1:     sess.Answers[0],
		Question2:   q(2),
		Answer2:     sess.Answers[1],
		Question3:   q(3),
		Answer3:     sess.Answers[2],
		Question4:   q(4),
		Answer4:     sess.Answers[3],
		Question5:   q(5),
		Answer5:     sess.Answers[4],
	}
}

func (f *Flow) expire(chatID int64) error {
	f.sessions.ClearSurvey(chatID)
	return f.notifier.SendText(chatID, msgExpired)
}
