// Package instruments validates instrument relocation with photographic
// provenance and exposes the cabinet/instrument admin operations.
package instruments

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"clinicbot/db"
)

// DefaultSterilizationCabinet is the name of the single legal transfer
// destination. Instruments flow cabinet -> sterilization only; movement
// back out goes through admin reassignment, not a transfer.
const DefaultSterilizationCabinet = "Стерилизационная"

type Store interface {
	GetCabinet(ctx context.Context, id int64) (*db.Cabinet, error)
	ListCabinets(ctx context.Context, includeArchived bool) ([]db.Cabinet, error)
	CreateCabinet(ctx context.Context, c *db.Cabinet) error
	RenameCabinet(ctx context.Context, id int64, name string) (bool, error)
	SetCabinetActive(ctx context.Context, id int64, active bool) (bool, error)
	DeleteCabinet(ctx context.Context, id int64) (bool, error)
	CabinetHasInstruments(ctx context.Context, id int64) (bool, error)
	GetInstrument(ctx context.Context, id int64) (*db.Instrument, error)
	ListInstrumentsByCabinet(ctx context.Context, cabinetID int64, includeArchived bool) ([]db.Instrument, error)
	CreateInstrument(ctx context.Context, i *db.Instrument) error
	RenameInstrument(ctx context.Context, id int64, name string) (bool, error)
	SetInstrumentActive(ctx context.Context, id int64, active bool) (bool, error)
	DeleteInstrument(ctx context.Context, id int64) (bool, error)
	TransferInstrument(ctx context.Context, move *db.InstrumentMove) (bool, error)
	ListRecentMoves(ctx context.Context, limit int) ([]db.InstrumentMove, error)
	GetMove(ctx context.Context, id int64) (*db.InstrumentMove, error)
}

// TransferRequest carries everything needed to commit one relocation.
type TransferRequest struct {
	InstrumentID  int64
	FromCabinetID int64
	ToCabinetID   int64
	BeforePhotoID string
	AfterPhotoID  string
	MovedByChatID string
}

type Service struct {
	store             Store
	sterilizationName string
	log               *zap.Logger
	now               func() time.Time
}

func NewService(store Store, sterilizationName string, log *zap.Logger) *Service {
	if sterilizationName == "" {
		sterilizationName = DefaultSterilizationCabinet
	}
	return &Service{store: store, sterilizationName: sterilizationName, log: log, now: time.Now}
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SterilizationCabinet resolves the designated destination by name.
func (s *Service) SterilizationCabinet(ctx context.Context) (*db.Cabinet, error) {
	cabinets, err := s.store.ListCabinets(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range cabinets {
		if sameName(cabinets[i].Name, s.sterilizationName) {
			return &cabinets[i], nil
		}
	}
	return nil, nil
}

// Transfer validates and commits one relocation. A false result means a
// precondition failed; no state is changed in that case.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (bool, error) {
	if req.FromCabinetID == req.ToCabinetID {
		return false, nil
	}

	instrument, err := s.store.GetInstrument(ctx, req.InstrumentID)
	if err != nil {
		return false, err
	}
	if instrument == nil || instrument.CabinetID != req.FromCabinetID {
		// Stale state: the instrument moved since the user picked it.
		return false, nil
	}

	target, err := s.store.GetCabinet(ctx, req.ToCabinetID)
	if err != nil {
		return false, err
	}
	if target == nil || !sameName(target.Name, s.sterilizationName) {
		return false, nil
	}

	move := &db.InstrumentMove{
		InstrumentID:  req.InstrumentID,
		FromCabinetID: req.FromCabinetID,
		ToCabinetID:   req.ToCabinetID,
		BeforePhotoID: req.BeforePhotoID,
		AfterPhotoID:  req.AfterPhotoID,
		MovedByChatID: req.MovedByChatID,
		MovedAt:       s.now().Format(db.TimestampLayout),
	}
	moved, err := s.store.TransferInstrument(ctx, move)
	if err != nil {
		return false, err
	}
	if moved {
		s.log.Info("instrument transferred",
			zap.Int64("instrument_id", req.InstrumentID),
			zap.Int64("from", req.FromCabinetID),
			zap.Int64("to", req.ToCabinetID),
			zap.String("moved_by", req.MovedByChatID))
	}
	return moved, nil
}

func (s *Service) ListCabinets(ctx context.Context, includeArchived bool) ([]db.Cabinet, error) {
	return s.store.ListCabinets(ctx, includeArchived)
}

func (s *Service) GetCabinet(ctx context.Context, id int64) (*db.Cabinet, error) {
	return s.store.GetCabinet(ctx, id)
}

func (s *Service) AddCabinet(ctx context.Context, name string) (*db.Cabinet, error) {
	c := &db.Cabinet{Name: name, IsActive: true}
	if err := s.store.CreateCabinet(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) RenameCabinet(ctx context.Context, id int64, name string) (bool, error) {
	return s.store.RenameCabinet(ctx, id, name)
}

func (s *Service) SetCabinetActive(ctx context.Context, id int64, active bool) (bool, error) {
	return s.store.SetCabinetActive(ctx, id, active)
}

// DeleteCabinet refuses while any instrument is located in the cabinet.
func (s *Service) DeleteCabinet(ctx context.Context, id int64) (bool, error) {
	occupied, err := s.store.CabinetHasInstruments(ctx, id)
	if err != nil {
		return false, err
	}
	if occupied {
		return false, nil
	}
	return s.store.DeleteCabinet(ctx, id)
}

func (s *Service) ListInstruments(ctx context.Context, cabinetID int64, includeArchived bool) ([]db.Instrument, error) {
	return s.store.ListInstrumentsByCabinet(ctx, cabinetID, includeArchived)
}

func (s *Service) GetInstrument(ctx context.Context, id int64) (*db.Instrument, error) {
	return s.store.GetInstrument(ctx, id)
}

func (s *Service) AddInstrument(ctx context.Context, cabinetID int64, name string) (*db.Instrument, error) {
	i := &db.Instrument{Name: name, CabinetID: cabinetID, IsActive: true}
	if err := s.store.CreateInstrument(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) RenameInstrument(ctx context.Context, id int64, name string) (bool, error) {
	return s.store.RenameInstrument(ctx, id, name)
}

func (s *Service) SetInstrumentActive(ctx context.Context, id int64, active bool) (bool, error) {
	return s.store.SetInstrumentActive(ctx, id, active)
}

func (s *Service) DeleteInstrument(ctx context.Context, id int64) (bool, error) {
	return s.store.DeleteInstrument(ctx, id)
}

func (s *Service) ListRecentMoves(ctx context.Context, limit int) ([]db.InstrumentMove, error) {
	return s.store.ListRecentMoves(ctx, limit)
}

func (s *Service) GetMove(ctx context.Context, id int64) (*db.InstrumentMove, error) {
	return s.store.GetMove(ctx, id)
}
