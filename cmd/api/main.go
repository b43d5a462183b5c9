package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/calmloop/calmloop/backend/internal/cache"
	"github.com/calmloop/calmloop/backend/internal/config"
	"github.com/calmloop/calmloop/backend/internal/handler"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	"github.com/calmloop/calmloop/backend/internal/service/cues"
	historysvc "github.com/calmloop/calmloop/backend/internal/service/history"
	sessionsvc "github.com/calmloop/calmloop/backend/internal/service/session"
	"github.com/calmloop/calmloop/backend/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Optional chat model for the remote cue classifier.
	var chatModel model.ChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing with lexical mood analysis only")
			chatModel = nil
		}
	}

	cueSvc, err := cues.NewService(ctx, chatModel, cues.Config{
		Enabled:      cfg.AI.CueLLMEnabled,
		HistoryLimit: cfg.AI.CueHistoryLimit,
	})
	if err != nil {
		log.Printf("warning: failed to initialize cue classifier: %v", err)
		cueSvc = nil
	} else if cueSvc.Enabled() {
		log.Println("Remote cue classifier enabled")
	} else if cfg.AI.CueLLMEnabled {
		log.Println("Cue classifier requested but chat model unavailable, using lexicons only")
	}

	voiceGateway := voice.NewGateway(cfg.Voice.BaseURL, cfg.Voice.APIKey, &http.Client{Timeout: cfg.Voice.Timeout})
	historyClient := historysvc.NewClient(cfg.History.BaseURL, nil)

	var snapshotCache *cache.Store
	if cfg.Cache.Path != "" {
		snapshotCache, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			log.Printf("warning: failed to open snapshot cache: %v", err)
			snapshotCache = nil
		} else {
			defer snapshotCache.Close()
		}
	}

	checkinStore := checkin.NewMemoryStore()

	registry := sessionsvc.NewRegistry(func(userID string) *sessionsvc.Store {
		deps := sessionsvc.Deps{
			Voice:         voiceGateway,
			History:       historyClient,
			DebounceDelay: cfg.Session.DebounceDelay,
		}
		if cueSvc != nil && cueSvc.Enabled() {
			deps.Cues = cueSvc
		}
		if snapshotCache != nil {
			deps.Cache = snapshotCache
		}
		return sessionsvc.NewStore(userID, deps)
	})

	router := handler.NewRouter(registry, checkinStore, historyClient)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Calmloop backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
