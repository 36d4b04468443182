package hossii

import (
	"encoding/json"
	"time"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/model"
)

// schemaVersion of the persisted collection. Migration is explicit and
// version-driven: a lower version runs through migrateRecord exactly once at
// load, never re-detected from record content.
const schemaVersion = 1

type persistedList struct {
	SchemaVersion int               `json:"schema_version"`
	Hossiis       []json.RawMessage `json:"hossiis"`
}

// looseHossii tolerates malformed persisted records: the timestamp is read
// as a raw string and repaired, so one bad field never rejects the record
// and never aborts startup.
type looseHossii struct {
	ID          string            `json:"id"`
	SpaceID     string            `json:"space_id"`
	Message     string            `json:"message"`
	Emotion     model.Emotion     `json:"emotion"`
	AuthorID    string            `json:"author_id"`
	AuthorName  string            `json:"author_name"`
	CreatedAt   string            `json:"created_at"`
	Origin      model.Origin      `json:"origin"`
	AutoType    model.AutoType    `json:"auto_type"`
	SpeechLevel model.SpeechLevel `json:"speech_level"`
	Language    model.Language    `json:"language"`
	IsHidden    bool              `json:"is_hidden"`

	IsPositionFixed bool     `json:"is_position_fixed"`
	PositionX       *float64 `json:"position_x"`
	PositionY       *float64 `json:"position_y"`
	Scale           *float64 `json:"scale"`
	BubbleColor     string   `json:"bubble_color"`

	ImageURL    string   `json:"image_url"`
	NumberValue *float64 `json:"number_value"`
	Hashtags    []string `json:"hashtags"`
}

func encodeList(hossiis []model.Hossii) ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(hossiis))
	for i := range hossiis {
		data, err := json.Marshal(&hossiis[i])
		if err != nil {
			return nil, err
		}
		raws = append(raws, data)
	}
	return json.Marshal(persistedList{SchemaVersion: schemaVersion, Hossiis: raws})
}

// decodeList parses, normalizes and migrates a persisted collection.
// nil/empty input yields an empty list. A legacy bare array (pre-versioning)
// is treated as schema version 0.
func decodeList(raw []byte) []model.Hossii {
	if len(raw) == 0 {
		return nil
	}

	var list persistedList
	if err := json.Unmarshal(raw, &list); err != nil {
		// Legacy shape: a bare JSON array without the version envelope.
		var legacy []json.RawMessage
		if err := json.Unmarshal(raw, &legacy); err != nil {
			logger.Errorf("hossii: malformed persisted list, starting empty: %v", err)
			return nil
		}
		list = persistedList{SchemaVersion: 0, Hossiis: legacy}
	}

	out := make([]model.Hossii, 0, len(list.Hossiis))
	for _, rec := range list.Hossiis {
		h, ok := decodeRecord(rec)
		if !ok {
			continue
		}
		out = append(out, migrateRecord(h, list.SchemaVersion))
	}
	return out
}

// decodeRecord normalizes one record; returns ok=false for unknown shapes
// (dropped rather than crashing the load).
func decodeRecord(raw json.RawMessage) (model.Hossii, bool) {
	var lo looseHossii
	if err := json.Unmarshal(raw, &lo); err != nil {
		logger.Errorf("hossii: dropping malformed record: %v", err)
		return model.Hossii{}, false
	}
	if lo.ID == "" || lo.SpaceID == "" {
		return model.Hossii{}, false
	}

	createdAt := parseTimestamp(lo.CreatedAt)

	return model.Hossii{
		ID:              lo.ID,
		SpaceID:         lo.SpaceID,
		Message:         lo.Message,
		Emotion:         lo.Emotion,
		AuthorID:        lo.AuthorID,
		AuthorName:      lo.AuthorName,
		CreatedAt:       createdAt,
		Origin:          lo.Origin,
		AutoType:        lo.AutoType,
		SpeechLevel:     lo.SpeechLevel,
		Language:        lo.Language,
		IsHidden:        lo.IsHidden,
		IsPositionFixed: lo.IsPositionFixed,
		PositionX:       lo.PositionX,
		PositionY:       lo.PositionY,
		Scale:           lo.Scale,
		BubbleColor:     lo.BubbleColor,
		ImageURL:        lo.ImageURL,
		NumberValue:     lo.NumberValue,
		Hashtags:        lo.Hashtags,
	}, true
}

// migrateRecord lifts a record from an older schema version. Pure; applied
// once per load.
func migrateRecord(h model.Hossii, from int) model.Hossii {
	if from < 1 {
		// v0 predates the origin field. Legacy records are human posts.
		if h.Origin == "" {
			h.Origin = model.OriginManual
		}
	}
	return h
}

// parseTimestamp repairs malformed/missing created_at values. Several
// historical formats occur in the wild; anything unparsable becomes "now"
// rather than rejecting the record.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
