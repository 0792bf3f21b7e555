package survey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/session"
)

func newTestDispatcher(store *mockStore) (*Dispatcher, *fakeNotifier) {
	notifier := &fakeNotifier{}
	sessions := session.NewManager()
	flow := NewFlow(store, notifier, sessions, zap.NewNop())
	flow.now = func() time.Time { return testNow }
	d := NewDispatcher(store, flow, notifier, zap.NewNop())
	d.now = func() time.Time { return testNow }
	return d, notifier
}

func TestDispatcher_OnePairPerSubject(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	store.workers["Иванова Анна"] = &db.Worker{ID: 1, FullName: "Иванова Анна", ChatID: "100"}
	store.readyPairs = []db.Pair{
		{ID: 1, Subject: "Иванова Анна", Object: "Петров Пётр", Survey: "Врач",
			Date: "01.09.2025", Status: db.PairReady},
		{ID: 2, Subject: "Иванова Анна", Object: "Сидорова Мария", Survey: "Врач",
			Date: "01.09.2025", Status: db.PairReady},
	}

	d, notifier := newTestDispatcher(store)
	require.NoError(t, d.Run(context.Background()))

	// Перед рассылкой зависшие пары сбрасываются.
	assert.Equal(t, 1, store.resetCalls)

	// Активируется только первая пара субъекта; вторая дойдёт через цепочку.
	assert.Contains(t, store.statusCalls, statusCall{PairID: 1, From: db.PairReady, To: db.PairInProgress})
	assert.NotContains(t, store.statusCalls, statusCall{PairID: 2, From: db.PairReady, To: db.PairInProgress})

	// Опрос реально начат: уехал первый вопрос.
	require.NotEmpty(t, notifier.prompts)
	assert.Equal(t, int64(100), notifier.prompts[0].ChatID)
	assert.Equal(t, 1, notifier.prompts[0].Index)
}

func TestDispatcher_SkipsUnregisteredSubject(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	store.workers["Иванова Анна"] = &db.Worker{ID: 1, FullName: "Иванова Анна"} // нет chat_id
	store.readyPairs = []db.Pair{
		{ID: 1, Subject: "Иванова Анна", Object: "Петров Пётр", Survey: "Врач",
			Date: "01.09.2025", Status: db.PairReady},
	}

	d, notifier := newTestDispatcher(store)
	require.NoError(t, d.Run(context.Background()))

	assert.Empty(t, store.statusCalls)
	assert.Empty(t, notifier.prompts)
}

func TestDispatcher_BadChatIDLeavesPairReady(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	store.workers["Иванова Анна"] = &db.Worker{ID: 1, FullName: "Иванова Анна", ChatID: "не число"}
	store.readyPairs = []db.Pair{
		{ID: 1, Subject: "Иванова Анна", Object: "Петров Пётр", Survey: "Врач",
			Date: "01.09.2025", Status: db.PairReady},
	}

	d, notifier := newTestDispatcher(store)
	require.NoError(t, d.Run(context.Background()))

	// Пара не переводится в in_progress: иначе она зависла бы до
	// следующего сброса.
	assert.Empty(t, store.statusCalls)
	assert.Empty(t, notifier.prompts)
}

func TestDispatcher_SkipsBusySubject(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	store.workers["Иванова Анна"] = &db.Worker{ID: 1, FullName: "Иванова Анна", ChatID: "100"}
	store.busySubjects["Иванова Анна"] = true
	store.readyPairs = []db.Pair{
		{ID: 1, Subject: "Иванова Анна", Object: "Петров Пётр", Survey: "Врач",
			Date: "01.09.2025", Status: db.PairReady},
	}

	d, notifier := newTestDispatcher(store)
	require.NoError(t, d.Run(context.Background()))

	assert.Empty(t, store.statusCalls)
	assert.Empty(t, notifier.prompts)
}

func TestResetAndNotify(t *testing.T) {
	store := newMockStore()
	store.workers["Иванова Анна"] = &db.Worker{ID: 1, FullName: "Иванова Анна", ChatID: "100"}
	store.workers["Петров Пётр"] = &db.Worker{ID: 2, FullName: "Петров Пётр"} // нет chat_id
	store.inProgress = []db.Pair{
		{ID: 1, Subject: "Иванова Анна", Status: db.PairInProgress},
		{ID: 2, Subject: "Иванова Анна", Status: db.PairInProgress},
		{ID: 3, Subject: "Петров Пётр", Status: db.PairInProgress},
	}
	store.resetReturn = 3

	d, notifier := newTestDispatcher(store)
	n, err := d.ResetAndNotify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 1, store.resetCalls)

	// Каждый субъект с chat_id предупреждён ровно один раз.
	require.Len(t, notifier.texts, 1)
	assert.Equal(t, int64(100), notifier.texts[0].ChatID)
	assert.Equal(t, msgReset, notifier.texts[0].Text)
}

func TestResetAndNotify_NothingInProgress(t *testing.T) {
	store := newMockStore()

	d, notifier := newTestDispatcher(store)
	n, err := d.ResetAndNotify(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.resetCalls)
	assert.Empty(t, notifier.texts)
}
