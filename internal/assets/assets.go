// Package assets maps emotions to the mascot's face artwork. Pure lookup;
// the files themselves are served statically.
package assets

import "github.com/emotionwall/internal/model"

// AssetRef is a URL path to a static asset.
type AssetRef string

// Lookup resolves mascot faces. The mascot controller depends on this
// interface only, never on concrete paths.
type Lookup interface {
	FaceFor(e model.Emotion) AssetRef
	IdleFace() AssetRef
	ListeningFace() AssetRef
	InteractionFaces() []AssetRef
}

// Static serves faces from a fixed base path with one file per emotion.
type Static struct {
	base string
}

func NewStatic(base string) *Static {
	if base == "" {
		base = "/static/mascot"
	}
	return &Static{base: base}
}

func (s *Static) FaceFor(e model.Emotion) AssetRef {
	if !e.Valid() {
		return s.IdleFace()
	}
	return AssetRef(s.base + "/face-" + string(e) + ".png")
}

func (s *Static) IdleFace() AssetRef      { return AssetRef(s.base + "/face-idle.png") }
func (s *Static) ListeningFace() AssetRef { return AssetRef(s.base + "/face-listening.png") }

func (s *Static) InteractionFaces() []AssetRef {
	return []AssetRef{
		AssetRef(s.base + "/face-poke-1.png"),
		AssetRef(s.base + "/face-poke-2.png"),
		AssetRef(s.base + "/face-poke-3.png"),
	}
}

// EmojiFor returns the big floating emoji shown during a post reaction.
func EmojiFor(e model.Emotion) string {
	switch e {
	case model.EmotionJoy:
		return "😊"
	case model.EmotionFun:
		return "😆"
	case model.EmotionLove:
		return "❤️"
	case model.EmotionSurprise:
		return "😲"
	case model.EmotionThanks:
		return "🙏"
	case model.EmotionSad:
		return "😢"
	case model.EmotionAngry:
		return "😠"
	case model.EmotionTired:
		return "😪"
	default:
		return "✨"
	}
}
