// Package registration binds messaging handles to imported worker records.
package registration

import (
	"context"

	"go.uber.org/zap"

	"clinicbot/db"
)

type Store interface {
	GetWorker(ctx context.Context, id int64) (*db.Worker, error)
	GetWorkerByChatID(ctx context.Context, chatID string) (*db.Worker, error)
	ListUnregisteredWorkers(ctx context.Context) ([]db.Worker, error)
	BindChatID(ctx context.Context, workerID int64, chatID string) (bool, error)
	SetWorkerPhoto(ctx context.Context, workerID int64, fileID string) error
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) ListUnregistered(ctx context.Context) ([]db.Worker, error) {
	return s.store.ListUnregisteredWorkers(ctx)
}

// Bind attaches the chat id to the worker. First registration wins: once a
// chat id is bound to any worker, binding it again to another fails and the
// original binding is untouched.
func (s *Service) Bind(ctx context.Context, workerID int64, chatID string) (bool, error) {
	ok, err := s.store.BindChatID(ctx, workerID, chatID)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info("worker registered",
			zap.Int64("worker_id", workerID), zap.String("chat_id", chatID))
	} else {
		s.log.Warn("registration rejected",
			zap.Int64("worker_id", workerID), zap.String("chat_id", chatID))
	}
	return ok, nil
}

// SetPhoto updates the worker's photo reference; unlike the chat id, it may
// change any number of times.
func (s *Service) SetPhoto(ctx context.Context, workerID int64, fileID string) error {
	return s.store.SetWorkerPhoto(ctx, workerID, fileID)
}

func (s *Service) ByChatID(ctx context.Context, chatID string) (*db.Worker, error) {
	return s.store.GetWorkerByChatID(ctx, chatID)
}

func (s *Service) ByID(ctx context.Context, workerID int64) (*db.Worker, error) {
	return s.store.GetWorker(ctx, workerID)
}
