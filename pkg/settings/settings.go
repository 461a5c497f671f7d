// Package settings persists the CLI's last-used encode defaults
// across invocations, the same JSON-on-disk pattern the teacher used
// for its own playback preferences.
package settings

import (
	"encoding/json"
	"os"
)

// Settings holds CLI defaults that should survive across invocations,
// so a user who tunes --quality/--threshold once doesn't have to repeat
// the flags on every encode.
type Settings struct {
	Quality   int    `json:"quality"`
	Threshold int    `json:"threshold"`
	MinRegion int    `json:"minRegion"`
	Workers   int    `json:"workers"`
	CacheDir  string `json:"cacheDir"`
}

var defaultSettings = Settings{
	Quality:   80,
	Threshold: 30,
	MinRegion: 64,
	Workers:   1,
	CacheDir:  "assets/videos",
}

const filename = "vai_settings.json"

// Load reads the settings file from disk. When the file is missing or
// cannot be parsed, sane defaults are returned instead so the CLI can
// continue running.
func Load() Settings {
	f, err := os.Open(filename)
	if err != nil {
		return defaultSettings
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return defaultSettings
	}

	if s.Quality == 0 {
		s.Quality = defaultSettings.Quality
	}
	if s.Threshold == 0 {
		s.Threshold = defaultSettings.Threshold
	}
	if s.MinRegion == 0 {
		s.MinRegion = defaultSettings.MinRegion
	}
	if s.Workers == 0 {
		s.Workers = defaultSettings.Workers
	}
	if s.CacheDir == "" {
		s.CacheDir = defaultSettings.CacheDir
	}

	return s
}

// Save writes the provided settings to disk, creating the file when
// necessary.
func Save(s Settings) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
