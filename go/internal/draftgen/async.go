package draftgen

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// Result is the outcome of an asynchronous draft.
type Result struct {
	Program *models.Program
	Err     error
}

// GenerateAsync runs the generator on its own goroutine so callers never block their event
// loop on it. The channel yields exactly one Result and is then closed. On failure the
// Result carries no program and the caller keeps what it has.
func GenerateAsync(ctx context.Context, g Generator, rawText string, now func() time.Time) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)

		draft, err := g.Generate(ctx, rawText)
		if err != nil {
			log.Warn().Err(err).Msg("draft generation failed")
			out <- Result{Err: err}
			return
		}
		p := draft.ToProgram(now())
		log.Info().Str("title", p.Title).Int("slots", len(p.Slots)).Msg("draft generated")
		out <- Result{Program: &p}
	}()
	return out
}
