// Package signal turns raw audio energy readings and recognized speech text
// into typed semantic classes. Everything here is pure and synchronous so it
// is testable without audio hardware or a speech API.
package signal

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/emotionwall/internal/model"
)

// Thresholds holds the tunable classification limits.
type Thresholds struct {
	// Loud: instantaneous RMS at or above this is a loud event.
	Loud float64 `yaml:"loud"`
	// Laugh band: RMS in [LaughLow, Loud) with bursty variance is a laugh.
	LaughLow float64 `yaml:"laugh_low"`
	// LaughVariance: minimum variance over the trailing window for a laugh
	// (bursty pattern, as opposed to sustained loud noise).
	LaughVariance float64 `yaml:"laugh_variance"`
	// Silence: RMS below this counts as a silent frame.
	Silence float64 `yaml:"silence"`
	// MinTextRunes: trimmed transcripts shorter than this are noise.
	MinTextRunes int `yaml:"min_text_runes"`
}

// DefaultThresholds returns the production values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Loud:          0.5,
		LaughLow:      0.2,
		LaughVariance: 0.005,
		Silence:       0.05,
		MinTextRunes:  2,
	}
}

// EnergyClass is the result of classifying one energy sample.
type EnergyClass int

const (
	EnergyNone EnergyClass = iota
	EnergyLoud
	EnergyLaugh
	EnergySilence
)

// ClassifyEnergy classifies one RMS sample given the variance over the
// trailing window. At most one class is returned; ties resolve
// loud > laugh > silence.
func ClassifyEnergy(rms, variance float64, th Thresholds) EnergyClass {
	switch {
	case rms >= th.Loud:
		return EnergyLoud
	case rms >= th.LaughLow && variance >= th.LaughVariance:
		return EnergyLaugh
	case rms < th.Silence:
		return EnergySilence
	default:
		return EnergyNone
	}
}

// DetectLanguage reports the best-effort language of text. Japanese script
// wins over Latin letters; neither yields unknown.
func DetectLanguage(text string) model.Language {
	hasLatin := false
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return model.LanguageJapanese
		}
		if unicode.In(r, unicode.Latin) {
			hasLatin = true
		}
	}
	if hasLatin {
		return model.LanguageEnglish
	}
	return model.LanguageUnknown
}

// Granularity boundaries. English counts words, everything else counts runes.
const (
	enWordMax  = 3
	enShortMax = 10
	jaWordMax  = 10
	jaShortMax = 30
)

// ClassifyGranularity classifies transcript length into word/short/long.
func ClassifyGranularity(text string, lang model.Language) model.SpeechLevel {
	text = strings.TrimSpace(text)
	if lang == model.LanguageEnglish {
		n := len(strings.Fields(text))
		switch {
		case n <= enWordMax:
			return model.SpeechLevelWord
		case n <= enShortMax:
			return model.SpeechLevelShort
		default:
			return model.SpeechLevelLong
		}
	}
	n := len([]rune(text))
	switch {
	case n <= jaWordMax:
		return model.SpeechLevelWord
	case n <= jaShortMax:
		return model.SpeechLevelShort
	default:
		return model.SpeechLevelLong
	}
}

// Filler-word patterns per language. A transcript that is nothing but filler
// is treated as noise.
var (
	fillerJa = regexp.MustCompile(`^(?:えー+と?|あー+|んー+|うーん+|えっと+|あのー*|はい+|うん+)[。、.!?！？\s]*$`)
	fillerEn = regexp.MustCompile(`(?i)^(?:u+m+|u+h+|e+r+m*|h+m+|a+h+|o+h+|yeah|okay|ok)[.,!?\s]*$`)
)

// IsNoise reports whether a transcript fragment should be dropped: too short
// after trimming, or a pure filler word.
func IsNoise(text string, lang model.Language, th Thresholds) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < th.MinTextRunes {
		return true
	}
	switch lang {
	case model.LanguageEnglish:
		return fillerEn.MatchString(trimmed)
	default:
		return fillerJa.MatchString(trimmed)
	}
}
