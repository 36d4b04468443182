package signal

import (
	"strings"
	"testing"

	"github.com/emotionwall/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassifyEnergy(t *testing.T) {
	th := DefaultThresholds()

	t.Run("loud above high threshold", func(t *testing.T) {
		assert.Equal(t, EnergyLoud, ClassifyEnergy(0.6, 0, th))
		assert.Equal(t, EnergyLoud, ClassifyEnergy(0.5, 0, th))
	})

	t.Run("laugh requires mid band and bursty variance", func(t *testing.T) {
		assert.Equal(t, EnergyLaugh, ClassifyEnergy(0.3, 0.01, th))
		// Same band without variance is nothing.
		assert.Equal(t, EnergyNone, ClassifyEnergy(0.3, 0.001, th))
	})

	t.Run("loud wins over laugh", func(t *testing.T) {
		assert.Equal(t, EnergyLoud, ClassifyEnergy(0.7, 0.05, th))
	})

	t.Run("silence below low threshold", func(t *testing.T) {
		assert.Equal(t, EnergySilence, ClassifyEnergy(0.01, 0, th))
	})

	t.Run("quiet but not silent is none", func(t *testing.T) {
		assert.Equal(t, EnergyNone, ClassifyEnergy(0.1, 0, th))
	})
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, model.LanguageJapanese, DetectLanguage("こんにちは"))
	assert.Equal(t, model.LanguageJapanese, DetectLanguage("嬉しい"))
	assert.Equal(t, model.LanguageEnglish, DetectLanguage("hello there"))
	// Japanese script wins over Latin letters.
	assert.Equal(t, model.LanguageJapanese, DetectLanguage("OKです"))
	assert.Equal(t, model.LanguageUnknown, DetectLanguage("123 !!"))
	assert.Equal(t, model.LanguageUnknown, DetectLanguage(""))
}

func TestClassifyGranularity(t *testing.T) {
	t.Run("japanese uses rune counts", func(t *testing.T) {
		assert.Equal(t, model.SpeechLevelWord, ClassifyGranularity("こんにちは", model.LanguageJapanese))                 // 5 runes
		assert.Equal(t, model.SpeechLevelShort, ClassifyGranularity(strings.Repeat("あ", 15), model.LanguageJapanese)) // 15 runes
		assert.Equal(t, model.SpeechLevelLong, ClassifyGranularity(strings.Repeat("あ", 35), model.LanguageJapanese))  // 35 runes
	})

	t.Run("english uses word counts", func(t *testing.T) {
		assert.Equal(t, model.SpeechLevelWord, ClassifyGranularity("good morning", model.LanguageEnglish))
		assert.Equal(t, model.SpeechLevelShort, ClassifyGranularity("this meeting went really well again today folks", model.LanguageEnglish))
		assert.Equal(t, model.SpeechLevelLong, ClassifyGranularity("one two three four five six seven eight nine ten eleven twelve", model.LanguageEnglish))
	})

	t.Run("unknown language falls back to rune counts", func(t *testing.T) {
		assert.Equal(t, model.SpeechLevelWord, ClassifyGranularity("12345", model.LanguageUnknown))
	})
}

func TestIsNoise(t *testing.T) {
	th := DefaultThresholds()

	t.Run("too short", func(t *testing.T) {
		assert.True(t, IsNoise("", model.LanguageJapanese, th))
		assert.True(t, IsNoise(" あ ", model.LanguageJapanese, th))
	})

	t.Run("japanese fillers", func(t *testing.T) {
		assert.True(t, IsNoise("えーと", model.LanguageJapanese, th))
		assert.True(t, IsNoise("うーん", model.LanguageJapanese, th))
		assert.True(t, IsNoise("あのー", model.LanguageJapanese, th))
		assert.False(t, IsNoise("ありがとう", model.LanguageJapanese, th))
	})

	t.Run("english fillers", func(t *testing.T) {
		assert.True(t, IsNoise("umm", model.LanguageEnglish, th))
		assert.True(t, IsNoise("Uhh.", model.LanguageEnglish, th))
		assert.False(t, IsNoise("thanks a lot", model.LanguageEnglish, th))
	})
}
