package model

import "time"

// CardType selects the visual card style of a space.
type CardType string

const (
	CardTypeStar   CardType = "star"
	CardTypeBubble CardType = "bubble"
	CardTypeStamp  CardType = "stamp"
)

// DecorationWidget is a small decorative element pinned to the wall
// (viewport-percent coordinates).
type DecorationWidget struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Space is a named context partitioning posts. Exactly one space is active
// per client session.
type Space struct {
	ID            string             `json:"id"`
	Slug          string             `json:"slug,omitempty"` // public URL slug, unique across spaces
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	OwnerID       string             `json:"owner_id,omitempty"`
	CardType      CardType           `json:"card_type"`
	Background    string             `json:"background,omitempty"`
	QuickEmotions []Emotion          `json:"quick_emotions,omitempty"`
	Widgets       []DecorationWidget `json:"widgets,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
