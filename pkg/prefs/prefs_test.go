package prefs

import (
	"path/filepath"
	"testing"

	"streambridge/pkg/logger"
)

func TestDefaults(t *testing.T) {
	s := NewStore("")
	if s.Get(KeyQuality) != DefaultQuality {
		t.Errorf("Expected default quality %q, got %q", DefaultQuality, s.Get(KeyQuality))
	}
	if !s.GetBool(KeySubtitlesOn) {
		t.Error("Subtitles default on")
	}
	if s.GetBool(KeyBurnSubtitles) {
		t.Error("Burn-in defaults off")
	}
}

func TestSetPersistsAcrossStores(t *testing.T) {
	logger.Init("ERROR")
	path := filepath.Join(t.TempDir(), "prefs.json")

	s := NewStore(path)
	s.Set(KeyQuality, "3 Mbps")
	s.Set(KeyAudioLang, "jpn")

	reopened := NewStore(path)
	if reopened.Get(KeyQuality) != "3 Mbps" {
		t.Errorf("Quality not persisted, got %q", reopened.Get(KeyQuality))
	}
	if reopened.Get(KeyAudioLang) != "jpn" {
		t.Errorf("Audio lang not persisted, got %q", reopened.Get(KeyAudioLang))
	}
	// Untouched keys keep their defaults.
	if reopened.Get(KeySubtitleLang) != "eng" {
		t.Errorf("Unexpected subtitle lang %q", reopened.Get(KeySubtitleLang))
	}
}

func TestSubscribeNotifiesOnChange(t *testing.T) {
	s := NewStore("")

	var gotKey, gotValue string
	calls := 0
	s.Subscribe(func(key, value string) {
		gotKey, gotValue = key, value
		calls++
	})

	s.Set(KeyQuality, "720 kbps")
	if calls != 1 || gotKey != KeyQuality || gotValue != "720 kbps" {
		t.Errorf("Expected one notification for the change, got calls=%d key=%q value=%q", calls, gotKey, gotValue)
	}

	// Setting the same value again is a no-op.
	s.Set(KeyQuality, "720 kbps")
	if calls != 1 {
		t.Errorf("Unchanged value must not notify, got %d calls", calls)
	}
}
