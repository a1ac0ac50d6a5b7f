package session

import (
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// ApplyTimerState overwrites the local timer with a snapshot received from a peer.
// Snapshots for another program are discarded. Nothing is published back.
func (s *Session) ApplyTimerState(st models.TimerState) bool {
	if st.ProgramID != s.program.ID {
		log.Debug().
			Str("program_id", s.program.ID).
			Str("remote_program_id", st.ProgramID).
			Msg("discarding timer update for another program")
		return false
	}

	s.index = st.CurrentSlotIndex
	if s.index < 0 {
		s.index = 0
	}
	s.active = st.IsTimerActive

	switch {
	case st.IsTimerActive && st.TimerStartTimestamp != nil:
		s.startMs = models.Int64Ptr(*st.TimerStartTimestamp)
		s.elapsed = clock.ElapsedWhileActive(s.opts.Clock.Now(), *st.TimerStartTimestamp)
	case st.IsTimerActive:
		s.elapsed = st.SecondsElapsed
		s.startMs = models.Int64Ptr(clock.Backdate(s.opts.Clock.Now(), st.SecondsElapsed))
	default:
		s.elapsed = st.SecondsElapsed
		s.startMs = nil
	}
	return true
}

// ApplyProgram replaces the local program content with a peer's copy of the same program.
func (s *Session) ApplyProgram(p models.Program) bool {
	if p.ID != s.program.ID {
		log.Debug().
			Str("program_id", s.program.ID).
			Str("remote_program_id", p.ID).
			Msg("discarding program update for another program")
		return false
	}
	s.program = p.Clone()
	if s.program.Slots == nil {
		s.program.Slots = []models.Slot{}
	}
	s.notifyProgram()
	return true
}

// SyncResponse builds the reply to a late joiner. The start timestamp is recomputed from
// the responder's clock so the joiner lands on the same elapsed second.
// Read-only sessions never answer.
func (s *Session) SyncResponse() (models.TimerState, bool) {
	if s.opts.ReadOnly || s.program.ID == "" {
		return models.TimerState{}, false
	}
	elapsed := s.SecondsElapsed()
	st := models.TimerState{
		ProgramID:        s.program.ID,
		IsTimerActive:    s.active,
		CurrentSlotIndex: s.index,
		SecondsElapsed:   elapsed,
	}
	if s.active {
		st.TimerStartTimestamp = models.Int64Ptr(clock.Backdate(s.opts.Clock.Now(), elapsed))
	}
	return st, true
}
