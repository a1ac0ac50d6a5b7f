// Package sharelink turns a program snapshot into a compact URL-safe token and back.
//
// A token is a positional JSON array, deflated and base64url encoded without padding:
//
//	[version, id, title, subtitle, date, startTime, endTime|null, [[id, title, speaker, minutes, type, details, actual|null], ...]]
//
// Decoding also accepts the legacy form, plain standard base64 of either that array or a
// Program object.
package sharelink

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"

	"github.com/patrickudo2004/kairon/go/internal/models"
)

// Version is the positional layout written by Encode.
const Version = 1

// maxDecodedSize bounds inflated tokens.
const maxDecodedSize = 1 << 20

var errMalformed = errors.New("sharelink: malformed token")

// parseRaw decodes an inflated token body.
var parseRaw = parse

// Encode returns the share token for p. Nil slots encode as an empty list, so a decoded
// program always carries a non-nil Slots slice.
func Encode(p models.Program) (string, error) {
	data, err := json.Marshal(minify(p))
	if err != nil {
		return "", fmt.Errorf("marshal program: %w", err)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("compress program: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("compress program: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a share token. Any malformed input yields nil; it never panics.
func Decode(token string) (p *models.Program) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("share token decoding panicked")
			p = nil
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	raw, err := inflate(token)
	if err != nil {
		log.Debug().Err(err).Msg("share token is not compressed, trying legacy decoding")
		raw, err = legacy(token)
		if err != nil {
			log.Warn().Err(err).Msg("legacy share token decoding failed")
			return nil
		}
	}

	p, err = parseRaw(raw)
	if err != nil {
		log.Warn().Err(err).Msg("failed to decode share token")
		return nil
	}
	return p
}

func inflate(token string) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, err
	}
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDecodedSize {
		return nil, fmt.Errorf("share token inflates past %d bytes", maxDecodedSize)
	}
	if !json.Valid(data) {
		return nil, errMalformed
	}
	return data, nil
}

func legacy(token string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(token)
		if err == nil && json.Valid(data) {
			return data, nil
		}
	}
	return nil, errMalformed
}

func parse(raw []byte) (*models.Program, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errMalformed
	}

	switch raw[0] {
	case '[':
		return expand(raw)
	case '{':
		var p models.Program
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode legacy program: %w", err)
		}
		if p.Slots == nil {
			p.Slots = []models.Slot{}
		}
		return &p, nil
	default:
		return nil, errMalformed
	}
}

func minify(p models.Program) []any {
	var endTime any
	if p.EndTime != "" {
		endTime = p.EndTime
	}

	slots := make([]any, 0, len(p.Slots))
	for _, s := range p.Slots {
		var actual any
		if s.ActualDuration != nil {
			actual = *s.ActualDuration
		}
		slots = append(slots, []any{s.ID, s.Title, s.Speaker, s.DurationMinutes, string(s.Type), s.Details, actual})
	}

	return []any{Version, p.ID, p.Title, p.Subtitle, p.Date, p.StartTime, endTime, slots}
}

func expand(raw []byte) (*models.Program, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode program array: %w", err)
	}
	if len(fields) < 8 {
		return nil, fmt.Errorf("program array has %d fields: %w", len(fields), errMalformed)
	}

	var version int
	if err := json.Unmarshal(fields[0], &version); err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	if version != Version {
		log.Warn().Int("version", version).Int("expected", Version).Msg("share token version mismatch")
	}

	var (
		p       models.Program
		endTime *string
		slots   [][]json.RawMessage
	)
	targets := []any{&p.ID, &p.Title, &p.Subtitle, &p.Date, &p.StartTime, &endTime, &slots}
	for i, target := range targets {
		if err := json.Unmarshal(fields[i+1], target); err != nil {
			return nil, fmt.Errorf("decode program field %d: %w", i+1, err)
		}
	}
	if endTime != nil {
		p.EndTime = *endTime
	}

	p.Slots = make([]models.Slot, 0, len(slots))
	for i, s := range slots {
		slot, err := expandSlot(s)
		if err != nil {
			return nil, fmt.Errorf("decode slot %d: %w", i, err)
		}
		p.Slots = append(p.Slots, slot)
	}
	return &p, nil
}

func expandSlot(fields []json.RawMessage) (models.Slot, error) {
	if len(fields) < 5 {
		return models.Slot{}, errMalformed
	}

	var (
		s        models.Slot
		slotType string
		details  *string
		actual   *int
	)
	targets := []any{&s.ID, &s.Title, &s.Speaker, &s.DurationMinutes, &slotType, &details, &actual}
	for i, target := range targets {
		if i >= len(fields) {
			break
		}
		if err := json.Unmarshal(fields[i], target); err != nil {
			return models.Slot{}, err
		}
	}
	s.Type = models.SlotType(slotType)
	if details != nil {
		s.Details = *details
	}
	s.ActualDuration = actual
	return s, nil
}
