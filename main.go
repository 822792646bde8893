package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"

	go2tvadapters "github.com/vidwall/vidwall/internal/adapters/go2tv"
	"github.com/vidwall/vidwall/internal/buildinfo"
	"github.com/vidwall/vidwall/internal/control"
	"github.com/vidwall/vidwall/internal/diagnostics"
	"github.com/vidwall/vidwall/internal/domain"
	"github.com/vidwall/vidwall/internal/lifecycle"
	"github.com/vidwall/vidwall/internal/orchestrator"
	"github.com/vidwall/vidwall/internal/playlist"
	"github.com/vidwall/vidwall/internal/resolver"
	"github.com/vidwall/vidwall/internal/settings"
)

const serverName = "vidwall"

func main() {
	selfTest := flag.Bool("self-test", false, "run wiring diagnostics then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	playlistPath := flag.String("playlist", "", "playlist file to load on startup")
	settingsPath := flag.String("settings", "", "settings file (hot reloaded)")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	if *selfTest {
		report := diagnostics.Detect(diagnostics.Inputs{
			ProviderWired: true,
			ControlWired:  true,
			SettingsPath:  *settingsPath,
			PlaylistPath:  *playlistPath,
		})
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := newLogger(os.Getenv("VIDWALL_LOG_LEVEL"))
	log.Info().
		Str("server", serverName).
		Str("version", buildinfo.Version).
		Msg("starting")

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	provider := go2tvadapters.NewProvider(go2tvadapters.ProviderConfig{Logger: log})
	urlResolver := resolver.New(resolver.NewHTTPFetcher(log), log)
	svc := orchestrator.New(orchestrator.Config{
		Provider: provider,
		Resolver: urlResolver,
		Observer: eventLogger(log),
		Logger:   log,
	})

	holder := settings.NewHolder(*settingsPath, log, func(next settings.Settings) {
		svc.SetOpacityAll(next.DefaultOpacity)
		svc.SetVolumeAll(next.DefaultVolume)
	})
	if err := holder.Watch(runCtx); err != nil {
		log.Error().Err(err).Msg("settings watcher unavailable")
	}

	if sigs := lifecycle.PanicSignals(); len(sigs) > 0 {
		panicCh := make(chan os.Signal, 1)
		signal.Notify(panicCh, sigs...)
		go func() {
			for {
				select {
				case <-runCtx.Done():
					return
				case <-panicCh:
					svc.Panic()
				}
			}
		}()
	}

	if *playlistPath != "" && holder.Get().AutoLoadPlaylist {
		loadStartupPlaylist(runCtx, log, svc, *playlistPath)
	}

	srv := control.New(os.Stdin, os.Stdout, control.Config{
		ServerName:     serverName,
		ServerVersion:  buildinfo.Version,
		Logger:         log,
		Orchestrator:   svc,
		LoadPlaylist:   playlist.Load,
		DefaultOpacity: holder.Get().DefaultOpacity,
		DefaultVolume:  holder.Get().DefaultVolume,
	})

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- srv.Run(runCtx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
	case <-runCtx.Done():
		runErr = runCtx.Err()
	}
	if runErr != nil {
		log.Warn().Str("reason", runErr.Error()).Msg("stopping")
	} else {
		log.Info().Str("reason", "clean_eof").Msg("stopping")
	}

	shutdownDone := make(chan struct{})
	go func() {
		svc.StopAll()
		close(shutdownDone)
	}()
	select {
	case <-shutdownDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("shutdown timed out")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func loadStartupPlaylist(ctx context.Context, log zerolog.Logger, svc *orchestrator.Service, path string) {
	surfaces, err := svc.Surfaces(ctx)
	if err != nil {
		log.Error().Err(err).Msg("surface scan failed, startup playlist skipped")
		return
	}
	assignments, err := playlist.Load(path, surfaces)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("startup playlist unreadable")
		return
	}
	svc.Assign(ctx, assignments)
	log.Info().Str("path", path).Int("surfaces", len(assignments)).Msg("startup playlist loaded")
}

// eventLogger is the default observer: every playback event becomes one log
// line on stderr, where a supervising process can watch it.
func eventLogger(log zerolog.Logger) domain.Observer {
	return domain.ObserverFunc(func(ev domain.PlaybackEvent) {
		log.Info().
			Str("surface", string(ev.Surface)).
			Str("kind", string(ev.Kind)).
			Str("state", ev.State.String()).
			Str("reference", ev.Reference).
			Str("detail", ev.Detail).
			Msg("playback event")
	})
}

func newLogger(rawLevel string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(rawLevel)) {
	case "", "info":
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		fmt.Fprintf(os.Stderr, "invalid VIDWALL_LOG_LEVEL=%q; defaulting to info\n", rawLevel)
	}
	// Stdout carries the control channel; logs go to stderr only.
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
