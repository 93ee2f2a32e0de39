package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/srouault/personal-ai-assistant/app"
	"github.com/srouault/personal-ai-assistant/client"
	"github.com/srouault/personal-ai-assistant/config"
	"github.com/srouault/personal-ai-assistant/logging"
	"github.com/srouault/personal-ai-assistant/msg"
	"github.com/srouault/personal-ai-assistant/style"
)

var version = "dev"

const defaultURL = "http://localhost:8089"

func main() {
	profileFlag := flag.String("profile", "", "Named profile for state isolation (~/.chat/profiles/<name>)")
	urlFlag := flag.String("url", "", "Backend URL (overrides CHAT_URL and the config file)")
	offline := flag.Bool("offline", false, "Run without a backend; replies are canned")
	noColor := flag.Bool("no-color", false, "Disable ANSI colors")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.BoolVar(showVersion, "V", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chat %s\n", version)
		os.Exit(0)
	}

	if *noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	profileDir := resolveProfileDir(*profileFlag)
	cfg := config.Load(profileDir)

	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	// The config theme wins; otherwise follow the terminal background.
	if !style.SetTheme(cfg.Theme) {
		if lipgloss.HasDarkBackground() {
			style.SetTheme("dark")
		} else {
			style.SetTheme("light")
		}
	}

	baseURL := firstNonEmpty(*urlFlag, os.Getenv("CHAT_URL"), cfg.BackendURL, defaultURL)
	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		if data, err := os.ReadFile(filepath.Join(profileDir, "token")); err == nil {
			token = strings.TrimSpace(string(data))
		}
	}

	var (
		streamer app.Streamer
		backend  string
	)
	if *offline {
		streamer, backend = client.NewEcho(), "offline"
	} else {
		streamer, backend = client.New(baseURL, client.WithToken(token)), baseURL
	}

	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(profileDir, "exports")
	}

	m := app.New(app.Options{
		Streamer:     streamer,
		Backend:      backend,
		CodeStyle:    cfg.CodeStyle,
		WrapWidth:    cfg.WrapWidth,
		SmoothScroll: cfg.SmoothScroll,
		ExportDir:    exportDir,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	go func() {
		p.Send(app.ProgramReady{Program: p})
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		err := config.Watch(ctx, profileDir, func(c config.Config) {
			p.Send(msg.ConfigReloaded{
				Theme:        c.Theme,
				CodeStyle:    c.CodeStyle,
				WrapWidth:    c.WrapWidth,
				SmoothScroll: c.SmoothScroll,
			})
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		}
	}()

	slog.Info("starting", "version", version, "backend", backend, "profile", profileDir)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func resolveProfileDir(profile string) string {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".chat")
	if profile != "" {
		dir = filepath.Join(dir, "profiles", profile)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
	}
	return dir
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
