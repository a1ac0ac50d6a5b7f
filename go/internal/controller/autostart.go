package controller

import (
	"time"

	"github.com/patrickudo2004/kairon/go/internal/clock"
	"github.com/patrickudo2004/kairon/go/internal/models"
)

// AutoStart decides when a program's scheduled start has arrived.
// It only matches at second zero of the start minute, so a poller that misses that second
// misses the start entirely.
type AutoStart struct {
	fired string
}

// Due reports whether p should be force-started at now. It returns true at most once per
// program, date and start time.
func (a *AutoStart) Due(p models.Program, now time.Time) bool {
	if p.ID == "" || p.Date != now.Format(models.DateLayout) {
		return false
	}
	start, err := clock.ParseTimeOfDay(p.StartTime)
	if err != nil {
		return false
	}
	if now.Hour()*60+now.Minute() != start || now.Second() != 0 {
		return false
	}

	key := p.ID + "@" + p.Date + "T" + p.StartTime
	if a.fired == key {
		return false
	}
	a.fired = key
	return true
}
