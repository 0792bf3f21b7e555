package survey

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/notify"
)

const msgReset = "⚠️ Опрос был сброшен в связи с техническими работами.\n\n" +
	"Пожалуйста, не нажимайте на кнопки из предыдущего сообщения. " +
	"Мы скоро пришлём вам новый опрос."

// Dispatcher fans ready pairs out to workers. An external scheduler calls
// Run at fixed times; each run is idempotent thanks to the leading reset.
type Dispatcher struct {
	store    Store
	flow     *Flow
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(store Store, flow *Flow, notifier notify.Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		flow:     flow,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Run activates at most one pair per subject. Subsequent pairs drain one at
// a time through the flow's chaining. A failure for one subject never
// aborts the rest of the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	reset, err := d.store.ResetInProgressPairs(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		d.log.Info("reset stranded pairs", zap.Int64("count", reset))
	}

	today := d.now().Format(db.DateLayout)
	pairs, err := d.store.ListReadyPairsByDate(ctx, today)
	if err != nil {
		return err
	}

	// Group by subject, keeping the ascending-id order within and across
	// groups.
	var subjects []string
	bySubject := make(map[string][]db.Pair)
	for _, p := range pairs {
		if _, seen := bySubject[p.Subject]; !seen {
			subjects = append(subjects, p.Subject)
		}
		bySubject[p.Subject] = append(bySubject[p.Subject], p)
	}

	sent := 0
	for _, subject := range subjects {
		worker, err := d.store.GetWorkerByFullName(ctx, subject)
		if err != nil {
			d.log.Error("lookup worker failed", zap.String("subject", subject), zap.Error(err))
			continue
		}
		if worker == nil || !worker.Registered() {
			d.log.Warn("subject has no chat id", zap.String("subject", subject))
			continue
		}
		// Validate before activating the pair: a bad chat id must not
		// strand it in_progress until the next reset.
		chatID, err := strconv.ParseInt(worker.ChatID, 10, 64)
		if err != nil {
			d.log.Warn("bad chat id",
				zap.String("subject", subject), zap.String("chat_id", worker.ChatID))
			continue
		}

		busy, err := d.store.HasInProgressPair(ctx, subject)
		if err != nil {
			d.log.Error("check active survey failed", zap.String("subject", subject), zap.Error(err))
			continue
		}
		if busy {
			d.log.Warn("subject already has an active survey", zap.String("subject", subject))
			continue
		}

		pair := bySubject[subject][0]
		ok, err := d.store.SetPairStatus(ctx, pair.ID, db.PairReady, db.PairInProgress)
		if err != nil {
			d.log.Error("activate pair failed", zap.Int64("pair_id", pair.ID), zap.Error(err))
			continue
		}
		if !ok {
			// Someone else activated or finished it since the listing.
			continue
		}

		if err := d.flow.Begin(ctx, chatID, pair); err != nil {
			d.log.Error("start survey failed", zap.Int64("pair_id", pair.ID), zap.Error(err))
			continue
		}
		sent++
		d.log.Info("survey dispatched",
			zap.String("subject", subject),
			zap.Int64("pair_id", pair.ID),
			zap.String("date", pair.Date))
	}

	d.log.Info("dispatch run finished",
		zap.Int("subjects", len(subjects)), zap.Int("sent", sent))
	return nil
}

// ResetAndNotify warns every subject with an active survey, then forces
// their pairs back to ready. Used before maintenance.
func (d *Dispatcher) ResetAndNotify(ctx context.Context) (int64, error) {
	pairs, err := d.store.ListInProgressPairs(ctx)
	if err != nil {
		return 0, err
	}
	if len(pairs) == 0 {
		return 0, nil
	}

	seen := make(map[string]bool)
	for _, p := range pairs {
		if seen[p.Subject] {
			continue
		}
		seen[p.Subject] = true

		worker, err := d.store.GetWorkerByFullName(ctx, p.Subject)
		if err != nil || worker == nil || !worker.Registered() {
			d.log.Warn("cannot notify subject about reset", zap.String("subject", p.Subject))
			continue
		}
		chatID, err := strconv.ParseInt(worker.ChatID, 10, 64)
		if err != nil {
			continue
		}
		if err := d.notifier.SendText(chatID, msgReset); err != nil {
			d.log.Error("reset notice failed", zap.String("subject", p.Subject), zap.Error(err))
		}
	}

	return d.store.ResetInProgressPairs(ctx)
}
