package archive

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GameRecord is one finished game.
type GameRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LobbyCode   string    `gorm:"size:6;index;not null" json:"lobbyCode"`
	WinnerID    string    `gorm:"not null" json:"winnerId"`
	WinnerName  string    `gorm:"not null" json:"winnerName"`
	WinnerScore int       `json:"winnerScore"`
	Rounds      int       `json:"rounds"`
	Players     int       `json:"players"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `gorm:"index" json:"endedAt"`
	CreatedAt   time.Time `json:"-"`
}

// Recorder accepts finished games without blocking the caller.
type Recorder interface {
	Record(rec GameRecord)
}

type Nop struct{}

func (Nop) Record(GameRecord) {}

// Store persists a record synchronously.
type Store interface {
	Save(ctx context.Context, rec *GameRecord) error
}

const saveTimeout = 5 * time.Second

// Writer queues records for a Store and saves them from its own goroutine.
// Records offered while the queue is full are dropped.
type Writer struct {
	queue chan GameRecord
	store Store
	log   *zap.Logger
}

func NewWriter(store Store, size int, log *zap.Logger) *Writer {
	return &Writer{queue: make(chan GameRecord, size), store: store, log: log}
}

func (w *Writer) Record(rec GameRecord) {
	select {
	case w.queue <- rec:
	default:
		w.log.Warn("archive queue full, dropping game record", zap.String("lobby", rec.LobbyCode))
	}
}

// Run saves queued records until ctx is done, then flushes what is already
// queued with a fresh deadline.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil
		case rec := <-w.queue:
			w.save(ctx, rec)
		}
	}
}

func (w *Writer) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	for {
		select {
		case rec := <-w.queue:
			w.save(ctx, rec)
		default:
			return
		}
	}
}

func (w *Writer) save(ctx context.Context, rec GameRecord) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := w.store.Save(ctx, &rec); err != nil {
		w.log.Error("save game record", zap.String("lobby", rec.LobbyCode), zap.Error(err))
		return
	}
	w.log.Info("game archived",
		zap.String("lobby", rec.LobbyCode),
		zap.String("winner", rec.WinnerName),
		zap.Int("rounds", rec.Rounds))
}
