package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Config holds persistent chat settings stored at <profileDir>/chat.toml.
type Config struct {
	Theme        string    `toml:"theme"`
	CodeStyle    string    `toml:"code_style"`
	WrapWidth    int       `toml:"wrap_width"`
	SmoothScroll bool      `toml:"smooth_scroll"`
	BackendURL   string    `toml:"backend_url"`
	ExportDir    string    `toml:"export_dir"`
	Log          LogConfig `toml:"log"`
}

// LogConfig controls the log file. The terminal belongs to the UI, so logs
// only go to a file, or nowhere.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
	File   string `toml:"file"`
}

const filename = "chat.toml"

// Path returns the settings file location inside profileDir.
func Path(profileDir string) string {
	return filepath.Join(profileDir, filename)
}

// Load reads <profileDir>/chat.toml and returns the parsed Config.
// If the file is absent or unreadable, a default Config is returned. Keys
// missing from the file keep their defaults.
func Load(profileDir string) Config {
	cfg, err := Read(profileDir)
	if err != nil {
		return Defaults()
	}
	return cfg
}

// Read is Load with the error kept, for callers that report it.
func Read(profileDir string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(Path(profileDir))
	if err != nil {
		return cfg, err
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Defaults(), fmt.Errorf("parse %s: %w", filename, err)
	}
	return cfg, nil
}

// Save writes cfg to <profileDir>/chat.toml, creating the directory if needed.
func Save(profileDir string, cfg Config) error {
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return os.WriteFile(Path(profileDir), buf.Bytes(), 0o644)
}

// Defaults returns the settings used when no file exists.
func Defaults() Config {
	return Config{
		Theme:        "dark",
		CodeStyle:    "monokai",
		WrapWidth:    100,
		SmoothScroll: true,
		BackendURL:   "",
		ExportDir:    "",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

const debounce = 100 * time.Millisecond

// Watch calls fn with the reloaded Config whenever the settings file in
// profileDir is written or replaced. Editors often save in several steps, so
// events are debounced. Unparseable files are skipped. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, profileDir string, fn func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors that save by rename drop a file watch.
	if err := w.Add(profileDir); err != nil {
		return fmt.Errorf("watch %s: %w", profileDir, err)
	}

	target := Path(profileDir)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := Read(profileDir)
			if err != nil {
				slog.Warn("config reload skipped", "path", target, "err", err)
				continue
			}
			fn(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "err", err)
		}
	}
}
