package model

import (
	"strings"
	"time"
)

// Emotion is one of the eight quick-reaction tags a post may carry.
type Emotion string

const (
	EmotionJoy      Emotion = "joy"
	EmotionFun      Emotion = "fun"
	EmotionLove     Emotion = "love"
	EmotionSurprise Emotion = "surprise"
	EmotionThanks   Emotion = "thanks"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionTired    Emotion = "tired"
)

// Emotions lists every valid emotion tag, in display order.
var Emotions = []Emotion{
	EmotionJoy, EmotionFun, EmotionLove, EmotionSurprise,
	EmotionThanks, EmotionSad, EmotionAngry, EmotionTired,
}

func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Origin states whether a post was entered by a human or generated from a
// detected audio/speech signal.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginAuto   Origin = "auto"
)

// AutoType refines auto-generated posts.
type AutoType string

const (
	AutoTypeEmotion  AutoType = "emotion"
	AutoTypeSpeech   AutoType = "speech"
	AutoTypeLaughter AutoType = "laughter"
)

// SpeechLevel is the granularity class of recognized speech text.
type SpeechLevel string

const (
	SpeechLevelWord  SpeechLevel = "word"
	SpeechLevelShort SpeechLevel = "short"
	SpeechLevelLong  SpeechLevel = "long"
)

// Language is the best-effort detected language of auto-generated text.
type Language string

const (
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"
	LanguageUnknown  Language = "unknown"
)

// AutoAuthorName is the reserved author name for system-generated posts.
const AutoAuthorName = "ほしのこ"

// Hossii is a single dropped reaction on the wall.
type Hossii struct {
	ID          string      `json:"id"`
	SpaceID     string      `json:"space_id"`
	Message     string      `json:"message"`
	Emotion     Emotion     `json:"emotion,omitempty"`
	AuthorID    string      `json:"author_id,omitempty"`
	AuthorName  string      `json:"author_name,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Origin      Origin      `json:"origin"`
	AutoType    AutoType    `json:"auto_type,omitempty"`
	SpeechLevel SpeechLevel `json:"speech_level,omitempty"`
	Language    Language    `json:"language,omitempty"`
	IsHidden    bool        `json:"is_hidden"`

	// Manual placement overrides set by drag interactions (viewport percent).
	IsPositionFixed bool     `json:"is_position_fixed,omitempty"`
	PositionX       *float64 `json:"position_x,omitempty"`
	PositionY       *float64 `json:"position_y,omitempty"`
	Scale           *float64 `json:"scale,omitempty"`
	BubbleColor     string   `json:"bubble_color,omitempty"`

	ImageURL    string   `json:"image_url,omitempty"`
	NumberValue *float64 `json:"number_value,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
}

// HasContent reports whether the post satisfies the creation invariant:
// at least one of emotion, non-empty trimmed message, laughter marker,
// image or numeric value.
func (h *Hossii) HasContent() bool {
	return h.Emotion != "" ||
		strings.TrimSpace(h.Message) != "" ||
		h.AutoType == AutoTypeLaughter ||
		h.ImageURL != "" ||
		h.NumberValue != nil
}
