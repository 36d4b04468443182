package ws

import (
	"github.com/emotionwall/internal/mascot"
	"github.com/emotionwall/internal/model"
)

type EventType string

const (
	// Client -> server.
	EventJoin       EventType = "join"
	EventNewHossii  EventType = "new_hossii"
	EventAudioFrame EventType = "audio_frame"
	EventTranscript EventType = "transcript"
	EventTap        EventType = "tap"
	EventListening  EventType = "listening"
	EventResize     EventType = "resize"

	// Client -> server, bubble editing.
	EventPointerDown  EventType = "pointer_down"
	EventPointerMove  EventType = "pointer_move"
	EventPointerUp    EventType = "pointer_up"
	EventClickOutside EventType = "click_outside"
	EventEscape       EventType = "escape"
	EventRecolor      EventType = "recolor"

	// Server -> client.
	EventJoined         EventType = "joined"
	EventHossiiAdded    EventType = "hossii_added"
	EventHossiiUpdated  EventType = "hossii_updated"
	EventReaction       EventType = "reaction"
	EventMascotState    EventType = "mascot_state"
	EventParticles      EventType = "particles"
	EventListeningState EventType = "listening_state"
	EventSelection      EventType = "selection"
	EventError          EventType = "error"
)

// IncomingMessage is what the browser sends to the server.
type IncomingMessage struct {
	Type EventType `json:"type"`

	// join
	SpaceID string  `json:"space_id,omitempty"`
	Slug    string  `json:"slug,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`

	// new_hossii
	Message     string   `json:"message,omitempty"`
	Emotion     string   `json:"emotion,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	BubbleColor string   `json:"bubble_color,omitempty"`
	NumberValue *float64 `json:"number_value,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`

	// audio_frame
	RMS float64 `json:"rms,omitempty"`

	// transcript
	Text string `json:"text,omitempty"`

	// tap (viewport percent)
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	// listening
	On     bool `json:"on,omitempty"`
	Speech bool `json:"speech,omitempty"`

	// pointer_down / recolor
	HossiiID string  `json:"hossii_id,omitempty"`
	PX       float64 `json:"px,omitempty"` // pointer, pixels
	PY       float64 `json:"py,omitempty"`
	OnHandle bool    `json:"on_handle,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// OutgoingMessage is what the server sends to the browser. Payload uses
// typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// JoinedPayload answers a successful join with the space and the full
// visible post list.
type JoinedPayload struct {
	Space   model.Space    `json:"space"`
	Hossiis []model.Hossii `json:"hossiis"`
	Mascot  mascot.State   `json:"mascot"`
}

// ParticlesPayload triggers the client-side particle effect.
type ParticlesPayload struct {
	Emotion model.Emotion `json:"emotion"`
}

// ListeningStatePayload reports the microphone/speech session state, with a
// retryable error message when acquisition was refused.
type ListeningStatePayload struct {
	On     bool   `json:"on"`
	Speech bool   `json:"speech"`
	Error  string `json:"error,omitempty"`
}

// SelectionPayload mirrors the tab's bubble selection back so the client can
// render the outline and the resize handle.
type SelectionPayload struct {
	HossiiID string `json:"hossii_id,omitempty"`
	Editable bool   `json:"editable,omitempty"`
}

// ErrorPayload is the uniform error event body.
type ErrorPayload struct {
	Message string `json:"message"`
}
