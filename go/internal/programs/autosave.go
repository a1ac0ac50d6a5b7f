package programs

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// DefaultAutoSaveDelay is the quiet period after the last edit before a save.
const DefaultAutoSaveDelay = 2 * time.Second

// Saver persists a whole program.
type Saver interface {
	Save(ctx context.Context, p models.Program) error
}

// AutoSaveConfig configures an AutoSaver
type AutoSaveConfig struct {
	Delay       time.Duration
	SaveTimeout time.Duration
	Clock       clock.Clock
	ReadOnly    bool

	// OnError reports a failed save. Local state is left as is.
	OnError func(p models.Program, err error)
	OnSaved func(p models.Program)
}

// AutoSaver debounces program edits into saves. Placeholders, unchanged content and
// read-only sessions are never saved.
type AutoSaver struct {
	saver Saver
	cfg   AutoSaveConfig

	mu      sync.Mutex
	timer   clockwork.Timer
	pending *models.Program
	saved   *models.Program
	closed  bool
}

// NewAutoSaver creates an AutoSaver writing through saver.
func NewAutoSaver(saver Saver, cfg AutoSaveConfig) *AutoSaver {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultAutoSaveDelay
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &AutoSaver{saver: saver, cfg: cfg}
}

// MarkSaved records p as the persisted baseline, e.g. right after loading it from the store.
func (a *AutoSaver) MarkSaved(p models.Program) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := p.Clone()
	a.saved = &c
}

// Schedule queues p to be saved once no further edit arrives within the delay.
// It reports whether a save was queued.
func (a *AutoSaver) Schedule(p models.Program) bool {
	if a.cfg.ReadOnly || p.IsPlaceholder() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || (a.saved != nil && a.saved.Equal(p)) {
		return false
	}

	c := p.Clone()
	a.pending = &c
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = a.cfg.Clock.AfterFunc(a.cfg.Delay, a.fire)
	return true
}

// Flush saves any pending edit immediately.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	p := a.pending
	a.pending = nil
	a.mu.Unlock()

	if p == nil {
		return nil
	}
	return a.save(ctx, *p)
}

// Close flushes pending edits and rejects later ones.
func (a *AutoSaver) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return err
}

func (a *AutoSaver) fire() {
	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.timer = nil
	a.mu.Unlock()

	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.SaveTimeout)
	defer cancel()
	a.save(ctx, *p)
}

func (a *AutoSaver) save(ctx context.Context, p models.Program) error {
	if err := a.saver.Save(ctx, p); err != nil {
		log.Error().Err(err).Str("program_id", p.ID).Msg("autosave failed")
		if a.cfg.OnError != nil {
			a.cfg.OnError(p, err)
		}
		return err
	}

	a.mu.Lock()
	a.saved = &p
	a.mu.Unlock()

	log.Debug().Str("program_id", p.ID).Msg("autosaved program")
	if a.cfg.OnSaved != nil {
		a.cfg.OnSaved(p)
	}
	return nil
}
