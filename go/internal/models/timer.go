package models

// TimerState is the wire snapshot of a program's live timer.
// While the timer is active, TimerStartTimestamp (epoch ms) is the source of truth for elapsed
// time; SecondsElapsed is only meaningful while paused.
type TimerState struct {
	ProgramID           string `json:"programId"`
	IsTimerActive       bool   `json:"isTimerActive"`
	CurrentSlotIndex    int    `json:"currentSlotIndex"`
	SecondsElapsed      int    `json:"secondsElapsed"`
	TimerStartTimestamp *int64 `json:"timerStartTimestamp"`
}

// Int64Ptr is a small helper for optional timestamps.
func Int64Ptr(v int64) *int64 {
	return &v
}
