package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"

	"quizboard/internal/audio"
	"quizboard/internal/config"
	"quizboard/internal/logging"
	"quizboard/internal/server"
	"quizboard/internal/session"
	"quizboard/internal/store"
	ws "quizboard/pkg/http/ws"
)

// Application aggregates the stores, audio device and HTTP server.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	state *store.StructuredStore
	blobs *store.BlobStore
	audio *audio.Controller
	svc   *session.Service
	http  *http.Server
}

// New bootstraps config, logger, stores, audio and the HTTP server. Storage
// and audio failures degrade the board instead of aborting startup: a
// presentation must be able to run on a broken disk or a headless box.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.Store.DataDir).Msg("data dir unavailable; running without persistence")
	}

	state, err := store.OpenStructured(cfg.Store.StatePath(), logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Store.StatePath()).Msg("structured store unavailable")
		state = nil
	}

	blobs, err := store.OpenBlob(cfg.Store.AssetsPath(), logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Store.AssetsPath()).Msg("blob store unavailable")
		blobs = nil
	}

	sr := beep.SampleRate(cfg.Audio.SampleRate)
	var out audio.Output
	if cfg.Audio.Enabled {
		out, err = audio.NewSpeakerOutput(sr)
		if err != nil {
			logger.Warn().Err(err).Msg("speaker init failed; audio disabled")
			out = audio.NopOutput()
		}
	} else {
		out = audio.NopOutput()
	}
	ctrl := audio.NewController(out, sr, logger)

	boardState := session.LoadState(ctx, storeOrNil(state), logger)
	machine := session.NewMachine(boardState, ctrl, session.Options{
		AllowNoWinnerConfirm: cfg.Game.AllowNoWinnerConfirm,
	}, logger)
	svc := session.NewService(machine, storeOrNil(state), blobOrNil(blobs), logger)

	hub := ws.NewHub(logger)
	handler := session.NewHandler(svc, hub, logger)

	apiServer := server.NewHTTPServer(cfg, logger, server.Handlers{
		BoardWS:            handler.HandleWebSocket,
		Snapshot:           handler.HandleSnapshot,
		UploadIntro:        handler.HandleUploadIntro,
		UploadCorrectSound: handler.HandleUploadCorrectSound,
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		state:  state,
		blobs:  blobs,
		audio:  ctrl,
		svc:    svc,
		http:   apiServer,
	}, nil
}

// A nil *StructuredStore must become a nil interface, not a typed nil.
func storeOrNil(s *store.StructuredStore) session.StructuredStore {
	if s == nil {
		return nil
	}
	return s
}

func blobOrNil(b *store.BlobStore) session.BlobStore {
	if b == nil {
		return nil
	}
	return b
}

// Run starts the HTTP server, kicks off asset rehydration and waits for
// termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.svc.Rehydrate(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.audio.Close()

	if a.state != nil {
		if err := a.state.Close(); err != nil {
			a.logger.Error().Err(err).Msg("structured store shutdown error")
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.logger.Error().Err(err).Msg("blob store shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
