package command

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kiosk-system/internal/api"
	"kiosk-system/internal/cache"
	"kiosk-system/internal/catalog"
	"kiosk-system/internal/config"
	"kiosk-system/internal/estimate"
	"kiosk-system/internal/httpx"
	"kiosk-system/internal/hub"
	"kiosk-system/internal/kiosk"
	"kiosk-system/internal/logging"
	"kiosk-system/internal/repository"
)

// ConfigPath is bound to the root --config flag.
var ConfigPath string

func loadConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		var err error
		path, err = config.FindConfig()
		if err != nil {
			return nil, errors.New("no config file found; pass --config")
		}
	}
	return config.Load(path)
}

func Serve(ctx context.Context) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the kiosk queue service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(ctx, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "http port (overrides config)")
	return cmd
}

func runServe(ctx context.Context, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New("kiosk-service", cfg.LogLevel)

	db, err := repository.Connect(ctx, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "connect to postgres")
	}
	defer db.Close()

	if err := repository.MigrateUp(db, cfg.Database.Database); err != nil {
		return err
	}
	store := repository.NewStore(db)

	cat, err := catalog.Load(ctx, store)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"action": "catalog_loaded", "recipes": cat.Len()}).Info("recipe catalog ready")

	est := estimate.New(cat, cfg.Estimator.DefaultDuration(), cfg.Estimator.Decay)
	mgr := kiosk.NewManager(store, est, cat, log)

	if cfg.RabbitMQ.Host != "" {
		mqc, err := hub.Dial(cfg.RabbitMQ)
		if err != nil {
			return errors.Wrap(err, "connect to rabbitmq")
		}
		defer mqc.Close()
		if err := mqc.DeclareTopology(); err != nil {
			return errors.Wrap(err, "declare exchanges")
		}
		mgr.Subscribe(hub.NewPublisher(mqc, log))
	}

	var snap *cache.SnapshotCache
	if cfg.Redis.Host != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return errors.Wrap(err, "connect to redis")
		}
		defer rdb.Close()
		snap = cache.NewSnapshotCache(rdb, cfg.Redis.SnapshotTTL(), log)
		mgr.SetSnapshotSink(snap)
	}

	if err := mgr.Restore(ctx); err != nil {
		return err
	}

	if port == 0 {
		port = cfg.Server.Port
	}
	h := api.NewHandler(mgr, snap, log)
	srv := httpx.New(fmt.Sprintf(":%d", port), h.Router())

	log.WithFields(logrus.Fields{"action": "service_started", "port": port}).Info("kiosk service listening")
	return srv.Run(ctx)
}
