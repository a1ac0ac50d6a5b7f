package session

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// Status is the coarse state of a session's timer.
type Status string

const (
	StatusIdle     Status = "IDLE"
	StatusPaused   Status = "PAUSED"
	StatusRunning  Status = "RUNNING"
	StatusComplete Status = "COMPLETE"
)

// Publisher pushes snapshots to peers. Sends are fire-and-forget.
type Publisher interface {
	PublishTimer(state models.TimerState)
	PublishProgram(program models.Program)
}

// SlotCompletion describes a slot that has just been marked complete.
type SlotCompletion struct {
	ProgramID     string
	SlotID        string
	Index         int
	ActualMinutes int
	Auto          bool // true when the timer ran out, false for a manual next
}

// Options configure a Session.
type Options struct {
	ReadOnly  bool
	Clock     clock.Clock
	Publisher Publisher

	// OnSlotComplete is called after a slot's actual duration is recorded.
	OnSlotComplete func(SlotCompletion)
	// OnProgramChange is called whenever the local program content changes.
	OnProgramChange func(models.Program)
}

// Session is the in-memory timer state for one client and one program.
//
// A Session is not safe for concurrent use. Every call must come from the single goroutine
// that owns it (see controller.Controller).
type Session struct {
	opts Options

	program models.Program
	index   int
	active  bool
	elapsed int
	startMs *int64
}

// New creates a session holding an empty program. Call LoadProgram before use.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Session{opts: opts}
}

// ReadOnly reports whether the session was opened as a viewer.
func (s *Session) ReadOnly() bool {
	return s.opts.ReadOnly
}

// ProgramID returns the id of the loaded program.
func (s *Session) ProgramID() string {
	return s.program.ID
}

// Program returns a copy of the loaded program.
func (s *Session) Program() models.Program {
	return s.program.Clone()
}

// Status derives the state machine state from the stored fields.
func (s *Session) Status() Status {
	count := len(s.program.Slots)
	switch {
	case count == 0:
		return StatusIdle
	case s.index >= count:
		return StatusComplete
	case s.active:
		return StatusRunning
	default:
		return StatusPaused
	}
}

// CurrentIndex returns the active slot index. It equals the slot count once complete.
func (s *Session) CurrentIndex() int {
	return s.index
}

// SecondsElapsed returns elapsed seconds in the current slot, derived from the start
// timestamp while running.
func (s *Session) SecondsElapsed() int {
	if s.active && s.startMs != nil {
		return clock.ElapsedWhileActive(s.opts.Clock.Now(), *s.startMs)
	}
	return s.elapsed
}

// TimerState returns the wire snapshot of the session.
func (s *Session) TimerState() models.TimerState {
	st := models.TimerState{
		ProgramID:        s.program.ID,
		IsTimerActive:    s.active,
		CurrentSlotIndex: s.index,
		SecondsElapsed:   s.elapsed,
	}
	if s.startMs != nil {
		st.TimerStartTimestamp = models.Int64Ptr(*s.startMs)
	}
	return st
}

// LoadProgram replaces the timeline and resets to the first slot, paused.
// The reset is always published so peers cannot miss a program swap.
func (s *Session) LoadProgram(p models.Program) {
	s.reset(p)
	log.Info().
		Str("program_id", p.ID).
		Int("slots", len(p.Slots)).
		Bool("read_only", s.opts.ReadOnly).
		Msg("program loaded")

	s.notifyProgram()
	s.publishTimer()
	s.publishProgram()
}

// JoinProgram adopts p locally, paused at the first slot, without publishing anything.
// Peers already running p keep their timer; the joiner catches up from a sync_response.
func (s *Session) JoinProgram(p models.Program) {
	s.reset(p)
	log.Info().
		Str("program_id", p.ID).
		Int("slots", len(p.Slots)).
		Bool("read_only", s.opts.ReadOnly).
		Msg("program joined")

	s.notifyProgram()
}

func (s *Session) reset(p models.Program) {
	s.program = p.Clone()
	if s.program.Slots == nil {
		s.program.Slots = []models.Slot{}
	}
	s.index = 0
	s.elapsed = 0
	s.active = false
	s.startMs = nil
}

// Start runs the timer from the paused elapsed count. It is a no-op unless paused.
func (s *Session) Start() bool {
	if s.opts.ReadOnly || s.Status() != StatusPaused {
		return false
	}
	now := s.opts.Clock.Now()
	s.active = true
	s.startMs = models.Int64Ptr(clock.Backdate(now, s.elapsed))
	s.publishTimer()
	return true
}

// ForceStart runs the current slot from zero, discarding any paused elapsed time.
// Scheduled starts use it. It is a no-op unless paused.
func (s *Session) ForceStart() bool {
	if s.opts.ReadOnly || s.Status() != StatusPaused {
		return false
	}
	s.elapsed = 0
	return s.Start()
}

// Pause freezes elapsed time. It is a no-op unless running.
func (s *Session) Pause() bool {
	if s.opts.ReadOnly || s.Status() != StatusRunning {
		return false
	}
	s.elapsed = s.SecondsElapsed()
	s.active = false
	s.startMs = nil
	s.publishTimer()
	return true
}

// Toggle starts a paused timer or pauses a running one.
func (s *Session) Toggle() bool {
	if s.active {
		return s.Pause()
	}
	return s.Start()
}

// Tick recomputes elapsed time and fires at most one slot completion.
// It reports whether the slot index changed.
func (s *Session) Tick() bool {
	if !s.active {
		return false
	}
	now := s.opts.Clock.Now()
	if s.startMs == nil {
		s.startMs = models.Int64Ptr(clock.Backdate(now, s.elapsed))
	}
	s.elapsed = clock.ElapsedWhileActive(now, *s.startMs)

	// Viewers only display; the authoritative peer drives every transition.
	if s.opts.ReadOnly {
		return false
	}

	count := len(s.program.Slots)
	if s.index >= count {
		s.active = false
		s.startMs = nil
		s.elapsed = 0
		s.publishTimer()
		return false
	}

	slot := s.program.Slots[s.index]
	if s.elapsed < slot.DurationMinutes*60 {
		return false
	}

	// Auto-complete records the planned duration, unlike Next which records the real one.
	s.completeSlot(s.index, slot.DurationMinutes, true)

	if s.index+1 < count {
		s.index++
		s.elapsed = 0
		s.startMs = models.Int64Ptr(clock.UnixMilli(now))
		log.Info().
			Str("program_id", s.program.ID).
			Int("slot_index", s.index).
			Msg("auto-advanced to next slot")
	} else {
		s.index = count
		s.elapsed = 0
		s.active = false
		s.startMs = nil
		log.Info().Str("program_id", s.program.ID).Msg("program complete")
	}
	s.publishTimer()
	s.publishProgram()
	return true
}

// Next records the real elapsed minutes for the current slot and moves to the next one, paused.
// Calling it on the last slot completes the program.
func (s *Session) Next() bool {
	if s.opts.ReadOnly || s.index >= len(s.program.Slots) {
		return false
	}
	elapsed := s.SecondsElapsed()
	actual := int(math.Round(float64(elapsed) / 60))
	s.completeSlot(s.index, actual, false)

	s.index++
	s.elapsed = 0
	s.active = false
	s.startMs = nil
	s.publishTimer()
	s.publishProgram()
	return true
}

// Prev moves back one slot, paused at zero. It never touches recorded durations.
func (s *Session) Prev() bool {
	if s.opts.ReadOnly || s.index <= 0 {
		return false
	}
	s.index--
	s.elapsed = 0
	s.active = false
	s.startMs = nil
	s.publishTimer()
	return true
}

// Restart returns a complete program to its first slot without reloading it.
func (s *Session) Restart() bool {
	if s.opts.ReadOnly || s.Status() != StatusComplete {
		return false
	}
	s.index = 0
	s.elapsed = 0
	s.active = false
	s.startMs = nil
	s.publishTimer()
	return true
}

// EditProgram applies a local content edit to the loaded program and pushes it to peers.
// Edits for a different program id are rejected.
func (s *Session) EditProgram(p models.Program) bool {
	if s.opts.ReadOnly || p.ID != s.program.ID {
		return false
	}
	s.program = p.Clone()
	s.notifyProgram()
	s.publishProgram()

	if count := len(s.program.Slots); s.index > count {
		s.index = count
		s.elapsed = 0
		s.active = false
		s.startMs = nil
		s.publishTimer()
	}
	return true
}

func (s *Session) completeSlot(index, actualMinutes int, auto bool) {
	slot := &s.program.Slots[index]
	slot.ActualDuration = models.IntPtr(actualMinutes)

	log.Debug().
		Str("program_id", s.program.ID).
		Str("slot_id", slot.ID).
		Int("actual_minutes", actualMinutes).
		Bool("auto", auto).
		Msg("slot complete")

	if s.opts.OnSlotComplete != nil {
		s.opts.OnSlotComplete(SlotCompletion{
			ProgramID:     s.program.ID,
			SlotID:        slot.ID,
			Index:         index,
			ActualMinutes: actualMinutes,
			Auto:          auto,
		})
	}
	s.notifyProgram()
}

func (s *Session) notifyProgram() {
	if s.opts.OnProgramChange != nil {
		s.opts.OnProgramChange(s.program.Clone())
	}
}

func (s *Session) publishTimer() {
	if s.opts.ReadOnly || s.opts.Publisher == nil {
		return
	}
	s.opts.Publisher.PublishTimer(s.TimerState())
}

func (s *Session) publishProgram() {
	if s.opts.ReadOnly || s.opts.Publisher == nil {
		return
	}
	s.opts.Publisher.PublishProgram(s.program.Clone())
}
