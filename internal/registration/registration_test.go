package registration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicbot/db"
)

type mockStore struct {
	workers map[int64]*db.Worker
	byChat  map[string]*db.Worker
	photos  map[int64]string
}

func newMockStore() *mockStore {
	return &mockStore{
		workers: map[int64]*db.Worker{},
		byChat:  map[string]*db.Worker{},
		photos:  map[int64]string{},
	}
}

func (m *mockStore) GetWorker(_ context.Context, id int64) (*db.Worker, error) {
	return m.workers[id], nil
}

func (m *mockStore) GetWorkerByChatID(_ context.Context, chatID string) (*db.Worker, error) {
	return m.byChat[chatID], nil
}

func (m *mockStore) ListUnregisteredWorkers(_ context.Context) ([]db.Worker, error) {
	var out []db.Worker
	for _, w := range m.workers {
		if !w.Registered() {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *mockStore) BindChatID(_ context.Context, workerID int64, chatID string) (bool, error) {
	w, ok := m.workers[workerID]
	if !ok || w.ChatID != "" {
		return false, nil
	}
	if _, taken := m.byChat[chatID]; taken {
		return false, nil
	}
	w.ChatID = chatID
	m.byChat[chatID] = w
	return true, nil
}

func (m *mockStore) SetWorkerPhoto(_ context.Context, workerID int64, fileID string) error {
	m.photos[workerID] = fileID
	return nil
}

func TestBind_FirstWins(t *testing.T) {
	store := newMockStore()
	store.workers[7] = &db.Worker{ID: 7, FullName: "Иванова Анна"}
	store.workers[8] = &db.Worker{ID: 8, FullName: "Петров Пётр"}
	svc := NewService(store, zap.NewNop())

	ok, err := svc.Bind(context.Background(), 7, "100")
	require.NoError(t, err)
	assert.True(t, ok)

	// Тот же chat_id ко второй анкете не привязывается.
	ok, err = svc.Bind(context.Background(), 8, "100")
	require.NoError(t, err)
	assert.False(t, ok)

	// Уже занятую анкету перепривязать нельзя.
	ok, err = svc.Bind(context.Background(), 7, "200")
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := svc.ByChatID(context.Background(), "100")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, int64(7), w.ID)
}

func TestSetPhoto_Repeatable(t *testing.T) {
	store := newMockStore()
	store.workers[7] = &db.Worker{ID: 7, FullName: "Иванова Анна"}
	svc := NewService(store, zap.NewNop())

	require.NoError(t, svc.SetPhoto(context.Background(), 7, "photo-1"))
	require.NoError(t, svc.SetPhoto(context.Background(), 7, "photo-2"))
	assert.Equal(t, "photo-2", store.photos[7])
}

func TestListUnregistered(t *testing.T) {
	store := newMockStore()
	store.workers[7] = &db.Worker{ID: 7, FullName: "Иванова Анна", ChatID: "100"}
	store.workers[8] = &db.Worker{ID: 8, FullName: "Петров Пётр"}
	svc := NewService(store, zap.NewNop())

	unregistered, err := svc.ListUnregistered(context.Background())
	require.NoError(t, err)
	require.Len(t, unregistered, 1)
	assert.Equal(t, "Петров Пётр", unregistered[0].FullName)
}
