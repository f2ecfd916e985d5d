package state

import (
	"errors"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/database"
)

var ErrNilOperation = errors.New("nil operation")

// Host executes operations one at a time over the persistent state. Each
// operation runs on a fresh write cache that is written to the database
// atomically when it succeeds (or fails with a Persist wrapped error) and
// dropped otherwise.
type Host struct {
	mu    sync.RWMutex
	db    database.Database
	cfg   *Config
	sinks []EventSink
}

func NewHost(db database.Database, cfg *Config) *Host {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Host{db: db, cfg: cfg}
}

func (h *Host) DB() database.Database {
	return h.db
}

func (h *Host) Subscribe(sink EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Execute runs fn as caller. It returns the events emitted by fn when its
// writes have been committed.
func (h *Host) Execute(caller ethcommon.Address, fn func(ctx *Context) error) ([]Event, error) {
	if fn == nil {
		return nil, ErrNilOperation
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := &Context{
		f:      newFrame(h.db, nil),
		opID:   uuid.NewString(),
		caller: caller,
		now:    h.cfg.now(),
	}
	log := logger.WithFields(logger.Fields{
		"op":     ctx.opID,
		"caller": caller.Hex(),
	})

	err := fn(ctx)
	if err != nil && !IsPersisted(err) {
		log.WithError(err).Debug("operation reverted")
		return nil, err
	}

	if batch := ctx.f.batch(); batch.Len() > 0 {
		if werr := h.db.Write(batch); werr != nil {
			log.WithError(werr).Error("failed to commit operation")
			return nil, werr
		}
	}

	events := ctx.f.events
	for _, ev := range events {
		log.WithField("event", ev.Name).WithFields(ev.Fields).Debug("event")
	}
	for _, sink := range h.sinks {
		sink.HandleEvents(events)
	}

	if err != nil {
		log.WithError(err).Debug("operation rejected, state kept")
	}
	return events, err
}

// View runs fn on a throwaway write cache. Nothing fn writes is kept.
func (h *Host) View(fn func(ctx *Context) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ctx := &Context{
		f:    newFrame(h.db, nil),
		opID: "view",
		now:  h.cfg.now(),
	}
	return fn(ctx)
}
