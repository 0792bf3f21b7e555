package survey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicbot/db"
	"clinicbot/internal/commands"
	"clinicbot/internal/session"
)

type statusCall struct {
	PairID   int64
	From, To string
}

// mockStore — ручная заглушка хранилища для тестов движка опросов.
type mockStore struct {
	workers      map[string]*db.Worker
	surveys      map[string]*db.Survey
	readyPairs   []db.Pair
	inProgress   []db.Pair
	busySubjects map[string]bool

	statusCalls  []statusCall
	statusDenied map[int64]bool
	answers      []*db.Answer
	resetCalls   int
	resetReturn  int64
}

func newMockStore() *mockStore {
	return &mockStore{
		workers:      map[string]*db.Worker{},
		surveys:      map[string]*db.Survey{},
		busySubjects: map[string]bool{},
		statusDenied: map[int64]bool{},
	}
}

func (m *mockStore) GetWorkerByFullName(_ context.Context, fullName string) (*db.Worker, error) {
	return m.workers[fullName], nil
}

func (m *mockStore) GetSurveyByName(_ context.Context, name string) (*db.Survey, error) {
	return m.surveys[name], nil
}

func (m *mockStore) ListReadyPairsByDate(_ context.Context, _ string) ([]db.Pair, error) {
	return m.readyPairs, nil
}

func (m *mockStore) ListInProgressPairs(_ context.Context) ([]db.Pair, error) {
	return m.inProgress, nil
}

func (m *mockStore) NextReadyPairForSubject(_ context.Context, subject string) (*db.Pair, error) {
	for i, p := range m.readyPairs {
		if p.Subject == subject && p.Status == db.PairReady {
			m.readyPairs = append(m.readyPairs[:i:i], m.readyPairs[i+1:]...)
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockStore) HasInProgressPair(_ context.Context, subject string) (bool, error) {
	return m.busySubjects[subject], nil
}

func (m *mockStore) SetPairStatus(_ context.Context, pairID int64, from, to string) (bool, error) {
	m.statusCalls = append(m.statusCalls, statusCall{PairID: pairID, From: from, To: to})
	return !m.statusDenied[pairID], nil
}

func (m *mockStore) ResetInProgressPairs(_ context.Context) (int64, error) {
	m.resetCalls++
	return m.resetReturn, nil
}

func (m *mockStore) CreateAnswer(_ context.Context, a *db.Answer) error {
	m.answers = append(m.answers, a)
	return nil
}

type sentText struct {
	ChatID int64
	Text   string
}

type sentPrompt struct {
	ChatID   int64
	Text     string
	Index    int
	IssuedAt time.Time
}

type fakeNotifier struct {
	texts   []sentText
	photos  []sentText // Text хранит caption
	prompts []sentPrompt
}

func (n *fakeNotifier) SendText(chatID int64, text string) error {
	n.texts = append(n.texts, sentText{ChatID: chatID, Text: text})
	return nil
}

func (n *fakeNotifier) SendPhoto(chatID int64, _ string, caption string) error {
	n.photos = append(n.photos, sentText{ChatID: chatID, Text: caption})
	return nil
}

func (n *fakeNotifier) SendRatingPrompt(chatID int64, text string, questionIndex int, issuedAt time.Time) error {
	n.prompts = append(n.prompts, sentPrompt{ChatID: chatID, Text: text, Index: questionIndex, IssuedAt: issuedAt})
	return nil
}

var testNow = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func testSurvey(speciality string) *db.Survey {
	return &db.Survey{
		ID:         1,
		Speciality: speciality,
		Question1:  "Пунктуальность", Question1Type: db.QuestionInt,
		Question2: "Аккуратность", Question2Type: db.QuestionInt,
		Question3: "Работа с пациентом", Question3Type: db.QuestionInt,
		Question4: "Работа в четыре руки", Question4Type: db.QuestionInt,
		Question5: "Что можно улучшить?", Question5Type: db.QuestionStr,
	}
}

func newTestFlow(store *mockStore) (*Flow, *fakeNotifier, *session.Manager) {
	notifier := &fakeNotifier{}
	sessions := session.NewManager()
	flow := NewFlow(store, notifier, sessions, zap.NewNop())
	flow.now = func() time.Time { return testNow }
	return flow, notifier, sessions
}

func TestFlow_FullSurvey(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	store.workers["Петров Пётр"] = &db.Worker{ID: 2, FullName: "Петров Пётр", FileID: "photo-2"}

	flow, notifier, sessions := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Date: "01.09.2025", Status: db.PairInProgress}

	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	// Фото оцениваемого коллеги + первый вопрос.
	require.Len(t, notifier.photos, 1)
	assert.Contains(t, notifier.photos[0].Text, "Петров Пётр")
	require.Len(t, notifier.prompts, 1)
	assert.Equal(t, 1, notifier.prompts[0].Index)
	assert.Equal(t, "Пунктуальность", notifier.prompts[0].Text)

	// Четыре оценки кнопками.
	for i := 1; i <= 4; i++ {
		cmd := commands.Rate{Index: i, Value: "5", IssuedAt: testNow}
		require.NoError(t, flow.SubmitRating(context.Background(), 100, cmd))
	}
	require.Len(t, notifier.prompts, 4)
	// Пятый вопрос текстовый — уходит обычным сообщением.
	require.Len(t, notifier.texts, 1)
	assert.Equal(t, "Что можно улучшить?", notifier.texts[0].Text)

	consumed, err := flow.SubmitText(context.Background(), 100, "Всё отлично")
	require.NoError(t, err)
	assert.True(t, consumed)

	// Ответ сохранён целиком, с текстами вопросов.
	require.Len(t, store.answers, 1)
	a := store.answers[0]
	assert.Equal(t, "Иванова Анна", a.Subject)
	assert.Equal(t, "Петров Пётр", a.Object)
	assert.Equal(t, "Пунктуальность", a.Question1)
	assert.Equal(t, "5", a.Answer1)
	assert.Equal(t, "Всё отлично", a.Answer5)
	assert.Equal(t, testNow.Format(db.TimestampLayout), a.CompletedAt)

	// Пара закрыта, сессии нет, прощальное сообщение отправлено.
	require.NotEmpty(t, store.statusCalls)
	assert.Equal(t, statusCall{PairID: 5, From: db.PairInProgress, To: db.PairDone}, store.statusCalls[0])
	assert.Nil(t, sessions.Survey(100))
	assert.Equal(t, msgThanks, notifier.texts[len(notifier.texts)-1].Text)
}

func TestFlow_ChainsToNextPair(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	store.readyPairs = []db.Pair{
		{ID: 6, Subject: "Иванова Анна", Object: "Сидорова Мария",
			Survey: "Врач", Date: "01.09.2025", Status: db.PairReady},
	}

	flow, notifier, _ := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Date: "01.09.2025", Status: db.PairInProgress}
	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	for i := 1; i <= 4; i++ {
		cmd := commands.Rate{Index: i, Value: "4", IssuedAt: testNow}
		require.NoError(t, flow.SubmitRating(context.Background(), 100, cmd))
	}
	consumed, err := flow.SubmitText(context.Background(), 100, "ок")
	require.NoError(t, err)
	require.True(t, consumed)

	// Следующая пара активирована и опрос начат заново.
	assert.Contains(t, store.statusCalls, statusCall{PairID: 6, From: db.PairReady, To: db.PairInProgress})
	last := notifier.prompts[len(notifier.prompts)-1]
	assert.Equal(t, 1, last.Index)

	intro := notifier.texts[len(notifier.texts)-1]
	assert.Contains(t, intro.Text, "Сидорова Мария")
}

func TestSubmitRating_NoSession(t *testing.T) {
	store := newMockStore()
	flow, notifier, _ := newTestFlow(store)

	cmd := commands.Rate{Index: 1, Value: "5", IssuedAt: testNow}
	require.NoError(t, flow.SubmitRating(context.Background(), 100, cmd))

	require.Len(t, notifier.texts, 1)
	assert.Equal(t, msgExpired, notifier.texts[0].Text)
	assert.Empty(t, store.answers)
}

func TestSubmitRating_Expired(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	flow, notifier, sessions := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Status: db.PairInProgress}
	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	// Кнопка нажата через сутки с лишним после выдачи вопроса.
	stale := commands.Rate{Index: 1, Value: "5", IssuedAt: testNow.Add(-AnswerTTL - time.Minute)}
	require.NoError(t, flow.SubmitRating(context.Background(), 100, stale))

	assert.Nil(t, sessions.Survey(100))
	assert.Equal(t, msgExpired, notifier.texts[len(notifier.texts)-1].Text)
}

func TestSubmitRating_ReplayAfterReset(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	flow, notifier, sessions := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Status: db.PairInProgress}
	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	// Нажатие по вопросу 3 из старой клавиатуры, когда сессия заново на
	// шаге 1 и вопрос 2 не отвечен.
	sess := sessions.Survey(100)
	sess.Step = 3
	replay := commands.Rate{Index: 3, Value: "5", IssuedAt: testNow}
	require.NoError(t, flow.SubmitRating(context.Background(), 100, replay))

	assert.Nil(t, sessions.Survey(100))
	assert.Equal(t, msgExpired, notifier.texts[len(notifier.texts)-1].Text)
}

func TestSubmitRating_DoubleTapIgnored(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	flow, notifier, sessions := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Status: db.PairInProgress}
	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	first := commands.Rate{Index: 1, Value: "5", IssuedAt: testNow}
	require.NoError(t, flow.SubmitRating(context.Background(), 100, first))

	// Повторное нажатие той же кнопки молча игнорируется.
	before := len(notifier.texts)
	require.NoError(t, flow.SubmitRating(context.Background(), 100, first))
	assert.Len(t, notifier.texts, before)

	sess := sessions.Survey(100)
	require.NotNil(t, sess)
	assert.Equal(t, 2, sess.Step)
	assert.Equal(t, "5", sess.Answers[0])
}

func TestSubmitRating_ForgedValueRejected(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	flow, notifier, sessions := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Status: db.PairInProgress}
	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	// Подделанные payload с оценкой вне 1..5 или нечисловой.
	for _, value := range []string{"99", "0", "-1", "abc"} {
		forged := commands.Rate{Index: 1, Value: value, IssuedAt: testNow}
		require.NoError(t, flow.SubmitRating(context.Background(), 100, forged))
		assert.Equal(t, msgUseKeys, notifier.texts[len(notifier.texts)-1].Text)
	}

	// Сессия жива, оценка не записана, настоящая кнопка работает.
	sess := sessions.Survey(100)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.Step)
	assert.Empty(t, sess.Answers[0])

	genuine := commands.Rate{Index: 1, Value: "5", IssuedAt: testNow}
	require.NoError(t, flow.SubmitRating(context.Background(), 100, genuine))
	assert.Equal(t, "5", sessions.Survey(100).Answers[0])
}

func TestSubmitText_RejectedOnRatingQuestion(t *testing.T) {
	store := newMockStore()
	store.surveys["Врач"] = testSurvey("Врач")
	flow, notifier, sessions := newTestFlow(store)

	pair := db.Pair{ID: 5, Subject: "Иванова Анна", Object: "Петров Пётр",
		Survey: "Врач", Status: db.PairInProgress}
	require.NoError(t, flow.Begin(context.Background(), 100, pair))

	consumed, err := flow.SubmitText(context.Background(), 100, "пять")
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, msgUseKeys, notifier.texts[len(notifier.texts)-1].Text)

	// Сессия жива и всё ещё ждёт оценку кнопкой.
	sess := sessions.Survey(100)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.Step)
}

func TestSubmitText_NoSurveyNotConsumed(t *testing.T) {
	store := newMockStore()
	flow, notifier, _ := newTestFlow(store)

	consumed, err := flow.SubmitText(context.Background(), 100, "привет")
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.Empty(t, notifier.texts)
}
