package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/database"
	"bookstore_back_end/internal/handlers/user"
	"bookstore_back_end/internal/logger"
	"bookstore_back_end/internal/routes"
	"bookstore_back_end/internal/services"
	"bookstore_back_end/internal/store"
	"bookstore_back_end/internal/store/memory"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("❌ arrêt du serveur", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.New(logger.Options{Service: "bookstore-api", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	infra, closeInfra, err := connectInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeInfra()

	user.SetupOAuth(cfg)

	deps := routes.NewDeps(cfg, repo, infra)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           routes.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("🚀 serveur lancé", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("arrêt en cours…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// notifications et écritures ledger encore en vol
	deps.Orders.Wait()
	infra.Ledger.Wait()
	return err
}

func openStore(ctx context.Context, cfg config.Config) (store.Repository, func(), error) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("⚠️ stockage en mémoire : les données seront perdues à l'arrêt")
		return memory.New(), func() {}, nil
	}

	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	st := store.New(db)
	return st, func() {
		if err := st.Close(); err != nil {
			slog.Warn("fermeture PostgreSQL", "error", err)
		}
	}, nil
}

// connectInfra ouvre les services optionnels ; une variable d'environnement vide les désactive.
func connectInfra(ctx context.Context, cfg config.Config) (routes.Infra, func(), error) {
	var infra routes.Infra
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return infra, nil, err
	}
	if rdb != nil {
		infra.Redis = rdb
		closers = append(closers, func() { _ = rdb.Close() })
	}

	mc, err := database.ConnectMinIO(ctx, cfg.MinIO)
	if err != nil {
		closeAll()
		return infra, nil, err
	}
	infra.Images = services.NewImageStore(mc, cfg.MinIO.Bucket, cfg.MinIO.PublicURL)

	es, err := database.ConnectElastic(ctx, cfg.Elastic)
	if err != nil {
		closeAll()
		return infra, nil, err
	}
	infra.Index = services.NewBookIndex(es, cfg.Elastic.Index)

	session, err := database.ConnectScylla(cfg.Scylla)
	if err != nil {
		closeAll()
		return infra, nil, err
	}
	if session != nil {
		closers = append(closers, session.Close)
	}
	infra.Ledger = services.NewLedger(session)

	mailer, err := services.NewMailer(cfg.SMTP)
	if err != nil {
		closeAll()
		return infra, nil, err
	}
	infra.Mailer = mailer

	return infra, closeAll, nil
}
