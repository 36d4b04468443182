package handler

import (
	"net/http"

	"github.com/emotionwall/internal/config"
)

// ConfigHandler exposes the public runtime parameters the browser needs.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetEngineConfig returns the tunables the client-side capture loop mirrors:
// classification thresholds and aggregation timing.
func (h *ConfigHandler) GetEngineConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"thresholds": map[string]interface{}{
			"loud":           h.cfg.Audio.Thresholds.Loud,
			"laugh_low":      h.cfg.Audio.Thresholds.LaughLow,
			"laugh_variance": h.cfg.Audio.Thresholds.LaughVariance,
			"silence":        h.cfg.Audio.Thresholds.Silence,
			"min_text_runes": h.cfg.Audio.Thresholds.MinTextRunes,
		},
		"audio": map[string]int64{
			"cooldown_ms":      h.cfg.Audio.Cooldown.Milliseconds(),
			"silence_after_ms": h.cfg.Audio.SilenceAfter.Milliseconds(),
		},
		"speech": map[string]int64{
			"flush_delay_ms":        h.cfg.Speech.FlushDelay.Milliseconds(),
			"min_flush_interval_ms": h.cfg.Speech.MinFlushInterval.Milliseconds(),
			"max_buffer_runes":      int64(h.cfg.Speech.MaxBufferRunes),
		},
	})
}

// GetPushConfig returns the public VAPID key for push subscription (when enabled).
func (h *ConfigHandler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PushServiceURL == "" || h.cfg.PushVAPIDPublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":          true,
		"vapid_public_key": h.cfg.PushVAPIDPublicKey,
	})
}
