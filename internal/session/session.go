// Package session keeps per-chat conversation state: the survey a worker
// is answering or the instrument transfer they are walking through. State
// lives in the process and is cleared on completion or cancel. Updates for
// one chat are handled sequentially, so the mutex only protects the map.
package session

import (
	"sync"
	"time"

	"clinicbot/db"
)

// Survey is the answer accumulator for one in-progress pair.
type Survey struct {
	Pair     db.Pair
	Survey   db.Survey
	Answers  [db.QuestionCount]string
	Step     int // 1-based index of the question awaiting an answer
	IssuedAt time.Time
}

// Transfer flow steps, in order.
const (
	TransferPickCabinet = iota
	TransferPickInstrument
	TransferAwaitBeforePhoto
	TransferAwaitAfterPhoto
)

// Transfer accumulates one instrument relocation across several messages.
// The destination is resolved to the sterilization cabinet at commit time.
type Transfer struct {
	Step          int
	FromCabinetID int64
	InstrumentID  int64
	BeforePhotoID string
}

// ManualShift marks that the chat owes us a doctor name for an ad-hoc
// shift claim.
type ManualShift struct {
	Date string
	Type string
}

type state struct {
	survey      *Survey
	transfer    *Transfer
	manualShift *ManualShift
}

type Manager struct {
	mu     sync.Mutex
	states map[int64]*state
}

func NewManager() *Manager {
	return &Manager{states: make(map[int64]*state)}
}

func (m *Manager) get(chatID int64) *state {
	st, ok := m.states[chatID]
	if !ok {
		st = &state{}
		m.states[chatID] = st
	}
	return st
}

// StartSurvey replaces any previous survey state for the chat.
func (m *Manager) StartSurvey(chatID int64, pair db.Pair, survey db.Survey) *Survey {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Survey{Pair: pair, Survey: survey}
	m.get(chatID).survey = s
	return s
}

func (m *Manager) Survey(chatID int64) *Survey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(chatID).survey
}

func (m *Manager) ClearSurvey(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(chatID).survey = nil
}

// StartTransfer replaces any previous transfer state for the chat.
func (m *Manager) StartTransfer(chatID int64) *Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &Transfer{Step: TransferPickCabinet}
	m.get(chatID).transfer = t
	return t
}

func (m *Manager) Transfer(chatID int64) *Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(chatID).transfer
}

func (m *Manager) ClearTransfer(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(chatID).transfer = nil
}

// StartManualShift records that the chat owes a doctor name.
func (m *Manager) StartManualShift(chatID int64, date, shiftType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(chatID).manualShift = &ManualShift{Date: date, Type: shiftType}
}

func (m *Manager) ManualShift(chatID int64) *ManualShift {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(chatID).manualShift
}

func (m *Manager) ClearManualShift(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(chatID).manualShift = nil
}

// Clear drops all conversation state for the chat.
func (m *Manager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
}
