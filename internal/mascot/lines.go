package mascot

import "github.com/emotionwall/internal/model"

// Speech-bubble lines. The mascot speaks Japanese regardless of the post's
// detected language.

var shortLines = map[model.Emotion][]string{
	model.EmotionJoy:      {"やったー！", "うれしいね！"},
	model.EmotionFun:      {"あはは！", "たのしい〜！"},
	model.EmotionLove:     {"すてき！", "だいすき！"},
	model.EmotionSurprise: {"えっ！？", "びっくり！"},
	model.EmotionThanks:   {"ありがとう！", "感謝だね！"},
	model.EmotionSad:      {"よしよし…", "だいじょうぶ？"},
	model.EmotionAngry:    {"むむっ…", "おちついて〜"},
	model.EmotionTired:    {"おつかれさま", "ひとやすみしよ"},
}

var defaultShortLines = []string{"わーい！", "ほしぃ！"}

var tapLines = []string{
	"わっ！びっくりした！",
	"なになに〜？",
	"こちょばいよ〜",
	"えへへ",
	"あそぶ？",
}

var idleLines = []string{
	"みんな元気かな〜",
	"今日もいい日だね",
	"ふわふわ〜",
	"だれか来ないかな",
	"ほしぃ〜",
}

func shortLineFor(e model.Emotion, pick func(n int) int) string {
	lines := shortLines[e]
	if len(lines) == 0 {
		lines = defaultShortLines
	}
	return lines[pick(len(lines))]
}
