package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/realtime"
	"github.com/patrickudo2004/kairon/go/internal/session"
)

// ErrStopped is returned by calls made after Run has exited.
var ErrStopped = errors.New("controller: stopped")

// Config configures a Controller
type Config struct {
	Transport    realtime.Transport
	Clock        clock.Clock
	ClientID     string
	ReadOnly     bool
	TickInterval time.Duration
	SendTimeout  time.Duration
	SyncTimeout  time.Duration  // how long a joining editor waits for a peer's sync_response
	Location     *time.Location // zone used to match a program's date and start time

	OnSlotComplete  func(session.SlotCompletion)
	OnProgramChange func(models.Program)
}

// DefaultConfig returns a config with a one-second tick and a random client id.
func DefaultConfig(t realtime.Transport) Config {
	return Config{
		Transport:    t,
		Clock:        clock.Real(),
		ClientID:     uuid.NewString(),
		TickInterval: time.Second,
		SendTimeout:  5 * time.Second,
		SyncTimeout:  3 * time.Second,
		Location:     time.Local,
	}
}

// Controller owns one Session and serializes every mutation onto a single event loop:
// the tick, inbound channel messages and local commands.
type Controller struct {
	cfg  Config
	sess *session.Session

	commands chan command
	inbox    chan inbound
	done     chan struct{}

	// Owned by the loop goroutine.
	channel      *realtime.Channel
	ticker       clockwork.Ticker
	autoStart    AutoStart
	awaitingSync bool
	syncDeadline time.Time // zero while waiting with no deadline

	watchers *watchers
}

type command struct {
	fn    func(ctx context.Context) error
	reply chan error
}

type inboundKind int

const (
	inboundTimer inboundKind = iota
	inboundProgram
	inboundSyncRequest
	inboundSyncResponse
)

type inbound struct {
	programID string
	sender    string
	kind      inboundKind
	timer     models.TimerState
	program   models.Program
}

// New creates a controller. Run must be called to start its loop.
func New(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 3 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	c := &Controller{
		cfg:      cfg,
		commands: make(chan command),
		inbox:    make(chan inbound, 256),
		done:     make(chan struct{}),
		watchers: newWatchers(),
	}
	c.sess = session.New(session.Options{
		ReadOnly:        cfg.ReadOnly,
		Clock:           cfg.Clock,
		Publisher:       (*publisher)(c),
		OnSlotComplete:  cfg.OnSlotComplete,
		OnProgramChange: cfg.OnProgramChange,
	})
	return c
}

// ClientID returns the sender id used on the channel.
func (c *Controller) ClientID() string {
	return c.cfg.ClientID
}

// Run drives the event loop until ctx is cancelled, then closes the channel.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.ticker = c.cfg.Clock.NewTicker(c.cfg.TickInterval)
	defer func() {
		c.ticker.Stop()
		if err := c.channel.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close channel")
		}
		c.channel = nil
		c.watchers.closeAll()
	}()

	log.Info().
		Str("client_id", c.cfg.ClientID).
		Bool("read_only", c.cfg.ReadOnly).
		Msg("controller started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("client_id", c.cfg.ClientID).Msg("controller stopping")
			return ctx.Err()

		case <-c.ticker.Chan():
			c.tick()

		case in := <-c.inbox:
			c.apply(ctx, in)

		case cmd := <-c.commands:
			cmd.reply <- cmd.fn(ctx)
		}
		c.watchers.publish(c.sess.View())
	}
}

// Do runs fn on the loop goroutine with exclusive access to the session.
func (c *Controller) Do(ctx context.Context, fn func(s *session.Session)) error {
	return c.exec(ctx, func(context.Context) error {
		fn(c.sess)
		return nil
	})
}

// LoadProgram swaps the active program and resets every peer on its topic to the first
// slot. Use it when the user switches or creates a program. When the id changes the old
// channel is closed and a new one opened for the new id.
func (c *Controller) LoadProgram(ctx context.Context, p models.Program) error {
	return c.exec(ctx, func(loopCtx context.Context) error {
		return c.loadProgram(loopCtx, p, false)
	})
}

// JoinProgram opens a program that may already be live elsewhere, e.g. from an id or a
// share link. Nothing is published; the session adopts the timer from the first
// sync_response a peer sends.
func (c *Controller) JoinProgram(ctx context.Context, p models.Program) error {
	return c.exec(ctx, func(loopCtx context.Context) error {
		return c.loadProgram(loopCtx, p, true)
	})
}

// Start runs the timer from the paused position.
func (c *Controller) Start(ctx context.Context) (bool, error) {
	return c.mutate(ctx, (*session.Session).Start)
}

func (c *Controller) Pause(ctx context.Context) (bool, error) {
	return c.mutate(ctx, (*session.Session).Pause)
}

func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	return c.mutate(ctx, (*session.Session).Toggle)
}

// Next completes the current slot and moves on, paused.
func (c *Controller) Next(ctx context.Context) (bool, error) {
	return c.mutate(ctx, (*session.Session).Next)
}

func (c *Controller) Prev(ctx context.Context) (bool, error) {
	return c.mutate(ctx, (*session.Session).Prev)
}

func (c *Controller) Restart(ctx context.Context) (bool, error) {
	return c.mutate(ctx, (*session.Session).Restart)
}

// EditProgram applies a local content edit to the loaded program.
func (c *Controller) EditProgram(ctx context.Context, p models.Program) (bool, error) {
	return c.mutate(ctx, func(s *session.Session) bool { return s.EditProgram(p) })
}

// View returns a snapshot of the session.
func (c *Controller) View(ctx context.Context) (session.View, error) {
	var v session.View
	err := c.Do(ctx, func(s *session.Session) { v = s.View() })
	return v, err
}

// Watch streams a view after every loop event. Slow readers only see the latest view.
func (c *Controller) Watch() (<-chan session.View, func()) {
	return c.watchers.add()
}

func (c *Controller) mutate(ctx context.Context, fn func(*session.Session) bool) (bool, error) {
	var changed bool
	err := c.Do(ctx, func(s *session.Session) {
		changed = fn(s)
		if changed {
			c.stopAwaitingSync()
		}
	})
	return changed, err
}

func (c *Controller) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loadProgram(ctx context.Context, p models.Program, join bool) error {
	if p.ID == "" {
		return fmt.Errorf("load program: missing id")
	}

	reopened := false
	if c.channel == nil || c.channel.ProgramID() != p.ID {
		reopened = true
		if err := c.channel.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close previous channel")
		}
		c.channel = nil

		ch, err := realtime.Open(ctx, c.cfg.Transport, p.ID, c.cfg.ClientID, &inboxHandler{inbox: c.inbox, programID: p.ID})
		if err != nil {
			// Local state still works without peers.
			log.Error().Err(err).Str("program_id", p.ID).Msg("failed to open channel")
		} else {
			c.channel = ch
		}
	}

	c.syncDeadline = time.Time{}
	if join {
		c.sess.JoinProgram(p)
		c.awaitingSync = true
		if !c.cfg.ReadOnly {
			c.syncDeadline = c.cfg.Clock.Now().Add(c.cfg.SyncTimeout)
		}
		if !reopened {
			// Opening a channel already asks; an existing one has to ask again.
			c.channel.RequestSync(ctx)
		}
	} else {
		// An authoritative load is itself the shared state; a viewer waits for a peer.
		c.sess.LoadProgram(p)
		c.awaitingSync = c.cfg.ReadOnly
	}

	c.ticker.Reset(c.cfg.TickInterval)
	return nil
}

func (c *Controller) tick() {
	c.sess.Tick()

	now := c.cfg.Clock.Now()
	if c.awaitingSync && !c.syncDeadline.IsZero() && !now.Before(c.syncDeadline) {
		log.Debug().Str("program_id", c.sess.ProgramID()).Msg("no peer answered sync request")
		c.stopAwaitingSync()
	}

	if c.cfg.ReadOnly || c.sess.Status() != session.StatusPaused {
		return
	}
	if c.autoStart.Due(c.sess.Program(), now.In(c.cfg.Location)) && c.sess.ForceStart() {
		c.stopAwaitingSync()
		log.Info().
			Str("program_id", c.sess.ProgramID()).
			Int("slot_index", c.sess.CurrentIndex()).
			Msg("auto-started at scheduled time")
	}
}

func (c *Controller) stopAwaitingSync() {
	c.awaitingSync = false
	c.syncDeadline = time.Time{}
}

func (c *Controller) apply(ctx context.Context, in inbound) {
	if in.programID != c.sess.ProgramID() {
		return
	}

	switch in.kind {
	case inboundTimer:
		c.sess.ApplyTimerState(in.timer)
		c.stopAwaitingSync()

	case inboundProgram:
		// Editors hold the newest content; the relay's copy of a save may predate later edits.
		if !c.cfg.ReadOnly && in.sender == realtime.ServerSender {
			log.Debug().Str("program_id", in.programID).Msg("ignoring stored program echo")
			return
		}
		c.sess.ApplyProgram(in.program)

	case inboundSyncRequest:
		// A joiner still waiting for its own state has nothing current to offer.
		if c.awaitingSync {
			return
		}
		reply, ok := c.sess.SyncResponse()
		if !ok {
			return
		}
		sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
		defer cancel()
		c.channel.SendSyncResponse(sendCtx, reply)

	case inboundSyncResponse:
		if !c.awaitingSync {
			log.Debug().Str("program_id", in.programID).Msg("ignoring unsolicited sync response")
			return
		}
		if c.sess.ApplyTimerState(in.timer) {
			c.stopAwaitingSync()
		}
	}
}

// publisher adapts the controller's channel to session.Publisher. It only runs on the loop.
type publisher Controller

func (p *publisher) PublishTimer(st models.TimerState) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.SendTimeout)
	defer cancel()
	p.channel.SendTimer(ctx, st)
}

func (p *publisher) PublishProgram(program models.Program) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.SendTimeout)
	defer cancel()
	p.channel.SendProgram(ctx, program)
}

// inboxHandler queues one channel's deliveries for the loop. A full inbox drops the message;
// every message is a full snapshot so the next one repairs the gap.
type inboxHandler struct {
	inbox     chan<- inbound
	programID string
}

func (h *inboxHandler) push(in inbound) {
	select {
	case h.inbox <- in:
	default:
		log.Warn().Str("program_id", h.programID).Msg("inbox full, dropping message")
	}
}

func (h *inboxHandler) OnTimerUpdate(st models.TimerState) {
	h.push(inbound{programID: st.ProgramID, kind: inboundTimer, timer: st})
}

func (h *inboxHandler) OnProgramUpdate(p models.Program, sender string) {
	h.push(inbound{programID: p.ID, sender: sender, kind: inboundProgram, program: p})
}

func (h *inboxHandler) OnSyncRequest() {
	h.push(inbound{programID: h.programID, kind: inboundSyncRequest})
}

func (h *inboxHandler) OnSyncResponse(st models.TimerState) {
	h.push(inbound{programID: st.ProgramID, kind: inboundSyncResponse, timer: st})
}
