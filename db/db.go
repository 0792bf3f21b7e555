package db

import (
	"github.com/jmoiron/sqlx"
)

// Статусы пары: ready -> in_progress -> done. Сброс может вернуть
// in_progress обратно в ready.
const (
	PairReady      = "ready"
	PairInProgress = "in_progress"
	PairDone       = "done"
)

// Типы смен.
const (
	ShiftMorning = "morning"
	ShiftEvening = "evening"
)

// DateLayout is the wire format for every date exchanged with the
// import/export gateway and stored in the database.
const DateLayout = "02.01.2006"

// TimestampLayout is used for answer completion and instrument move times.
const TimestampLayout = "02.01.2006 15:04:05"

// Question type markers in survey templates.
const (
	QuestionInt = "int"
	QuestionStr = "str"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}
