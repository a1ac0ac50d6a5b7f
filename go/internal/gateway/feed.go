package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/programs"
	"github.com/patrickudo2004/kairon/go/internal/realtime"
)

// Sender identifies messages the gateway originates.
const Sender = realtime.ServerSender

// ProgramReader loads a program snapshot.
type ProgramReader interface {
	Get(ctx context.Context, id string) (*models.Program, error)
}

// ProgramFeed turns committed program writes into program_update messages, so clients on a
// topic see edits saved from anywhere, including other tools writing to the database.
type ProgramFeed struct {
	reader ProgramReader
	hub    *Hub
}

func NewProgramFeed(reader ProgramReader, hub *Hub) *ProgramFeed {
	return &ProgramFeed{reader: reader, hub: hub}
}

// HandleChange is a programs.ChangeListener handler.
func (f *ProgramFeed) HandleChange(ctx context.Context, change programs.Change) {
	logger := log.With().
		Str("program_id", change.ProgramID).
		Str("op", change.Op).
		Logger()

	if change.Op == "DELETE" {
		logger.Debug().Msg("ignoring program delete")
		return
	}

	p, err := f.reader.Get(ctx, change.ProgramID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load changed program")
		return
	}

	msg, err := realtime.NewMessage(p.ID, Sender, realtime.TypeProgramUpdate, p)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build program update")
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal program update")
		return
	}

	f.hub.Broadcast(realtime.Topic(p.ID), data)
	logger.Debug().Int("slots", len(p.Slots)).Msg("program update broadcast")
}
