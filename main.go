package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"ytcatalog/config"
	"ytcatalog/ingest"
	"ytcatalog/quota"
	"ytcatalog/server"
	"ytcatalog/storage"
	"ytcatalog/youtube"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.Command{
		Name:  "ytcatalog",
		Usage: "quota-aware YouTube catalog ingestion into MongoDB",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the trigger HTTP endpoint",
				Action: runServe,
			},
			{
				Name:   "sync",
				Usage:  "run one ingestion pass and exit",
				Action: runSync,
			},
			{
				Name:   "status",
				Usage:  "print the current run state",
				Action: runStatus,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.WithError(err).Fatal("ytcatalog failed")
	}
}

// setup loads configuration and wires the store and pipeline.
func setup(ctx context.Context) (*ingest.Coordinator, *storage.MongoStore, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := storage.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, nil, err
	}
	store := storage.NewMongoStore(client, cfg.Database)

	monitor := quota.NewLedger(cfg.QuotaDailyLimit, cfg.QuotaReserve, cfg.MaxResults)
	factory := func(ctx context.Context) (ingest.PlatformClient, error) {
		return youtube.NewClient(ctx, cfg, monitor)
	}

	return ingest.NewCoordinator(factory, store, store, cfg), store, cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	coordinator, store, cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	srv := server.New(cfg.ListenAddr, coordinator)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("serving trigger endpoint")
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	coordinator, store, _, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	result := coordinator.Run(ctx)
	if result.Err != nil {
		return result.Err
	}
	if result.Skipped {
		fmt.Println("skipped: another run is in progress")
		return nil
	}
	fmt.Printf("ingested %d videos\n", result.VideoCount)
	return nil
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	coordinator, store, _, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	meta, err := coordinator.Status(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
