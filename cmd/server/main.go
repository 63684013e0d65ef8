package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/elopez-dev/codebattle-backend/internal/config"
	"github.com/elopez-dev/codebattle-backend/internal/history"
	"github.com/elopez-dev/codebattle-backend/internal/httpapi"
	"github.com/elopez-dev/codebattle-backend/internal/hub"
	"github.com/elopez-dev/codebattle-backend/internal/judge"
	"github.com/elopez-dev/codebattle-backend/internal/problem"
	"github.com/elopez-dev/codebattle-backend/internal/room"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var problems problem.Provider
	var recorder history.Recorder
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		problemStore := problem.NewStore(db)
		if err := problemStore.Migrate(); err != nil {
			log.Fatal("problem migrate", zap.Error(err))
		}
		historyStore := history.NewStore(db)
		if err := historyStore.Migrate(); err != nil {
			log.Fatal("history migrate", zap.Error(err))
		}
		problems = problemStore
		recorder = historyStore
	} else {
		log.Warn("DATABASE_URL not set, using built-in problems and no match history")
		problems = problem.NewStaticProvider()
		recorder = history.Noop{}
	}

	var j judge.Judge
	if cfg.JudgeURL != "" {
		j = judge.NewHTTPJudge(cfg.JudgeURL, cfg.JudgeTimeout)
	} else {
		log.Warn("JUDGE_URL not set, every submission will pass")
		j = judge.AcceptAll{}
	}

	roomCfg := room.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		StaleMultiple:     cfg.StaleMultiple,
		ReconnectGrace:    cfg.ReconnectGrace,
		VoteWindow:        cfg.VoteWindow,
		JudgeTimeout:      cfg.JudgeTimeout,
		BasePoints:        cfg.BasePoints,
	}
	h := hub.NewHub(ctx, roomCfg, room.Deps{
		Problems: problems,
		Judge:    j,
		History:  recorder,
		Log:      log,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}
