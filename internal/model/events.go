package model

import "time"

// AudioEventType classifies a detected ambient-audio signal.
type AudioEventType string

const (
	AudioEventLaugh   AudioEventType = "laugh"
	AudioEventLoud    AudioEventType = "loud"
	AudioEventSilence AudioEventType = "silence"
)

// AudioEvent is an ephemeral classified ambient-audio signal. Not persisted;
// it only seeds an auto-generated post.
type AudioEvent struct {
	Type     AudioEventType `json:"type"`
	Emotion  Emotion        `json:"emotion,omitempty"`
	Message  string         `json:"message"`
	Language Language       `json:"language"`
}

// SpeechEvent is an ephemeral flushed chunk of recognized speech.
type SpeechEvent struct {
	Text     string      `json:"text"`
	Level    SpeechLevel `json:"level"`
	Language Language    `json:"language"`
}

// ReactionEvent is the cross-tab reaction notification. Receivers deduplicate
// on Nonce and drop events for spaces other than their active one.
type ReactionEvent struct {
	SpaceID     string      `json:"space_id"`
	HossiiID    string      `json:"hossii_id"`
	Emotion     Emotion     `json:"emotion,omitempty"`
	AuthorName  string      `json:"author_name,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	LogType     AutoType    `json:"log_type,omitempty"`
	SpeechLevel SpeechLevel `json:"speech_level,omitempty"`
	Nonce       string      `json:"nonce"`
}
