package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-data/streamloader/internal/badrows"
	"github.com/meridian-data/streamloader/internal/config"
	"github.com/meridian-data/streamloader/internal/decode"
	"github.com/meridian-data/streamloader/internal/migrations"
	"github.com/meridian-data/streamloader/internal/registry"
	"github.com/meridian-data/streamloader/internal/schemaid"
	"github.com/meridian-data/streamloader/internal/server"
	"github.com/meridian-data/streamloader/internal/state"
	"github.com/meridian-data/streamloader/internal/storage/postgres"
	"github.com/meridian-data/streamloader/internal/transport"
	"github.com/meridian-data/streamloader/internal/transport/kafka"
)

func main() {
	configPath := flag.String("config", "streamloader.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"purpose", cfg.Purpose,
		"backend", cfg.Transport.Backend,
		"schema", cfg.Database.Schema)

	decoder, err := decode.NewDecoder(decode.Purpose(cfg.Purpose))
	if err != nil {
		slog.Error("Failed to resolve decoder", "error", err)
		os.Exit(1)
	}

	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	timeout, err := cfg.Registry.RegistryTimeout()
	if err != nil {
		slog.Error("Invalid registry timeout", "value", cfg.Registry.Timeout, "error", err)
		os.Exit(1)
	}
	registryClient := registry.NewClient(cfg.Registry.BaseURL, cfg.Registry.APIKey, timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap must finish before any record is ingested: classifying
	// events against an unknown state would misroute migrations.
	tracker, issues, err := state.Bootstrap(ctx,
		postgres.NewCommentStore(dbAdapter.DB()), registryClient, cfg.Database.Schema)
	if err != nil {
		slog.Error("Failed to bootstrap schema state", "error", err)
		os.Exit(1)
	}
	for _, issue := range issues {
		slog.Warn("Table comment issue", "issue", issue.String())
	}

	source, sourceName, err := buildSource(cfg, decoder)
	if err != nil {
		slog.Error("Failed to build transport", "backend", cfg.Transport.Backend, "error", err)
		os.Exit(1)
	}

	manifest := postgres.NewManifestStore(dbAdapter.DB())
	loadID, err := manifest.OpenLoad(ctx, sourceName, time.Now())
	if err != nil {
		slog.Error("Failed to open manifest load", "error", err)
		os.Exit(1)
	}

	srv := server.New(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		dbAdapter.DB(), tracker, cfg.Server.Mode)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	var goodCount, badCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return consume(gctx, source, tracker, &goodCount, &badCount)
	})

	runErr := g.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := manifest.CloseLoad(closeCtx, loadID, goodCount.Load(), badCount.Load(), time.Now()); err != nil {
		slog.Error("Failed to close manifest load", "load_id", loadID, "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("Loader stopped with error", "error", runErr)
		os.Exit(1)
	}
	slog.Info("Shutdown complete", "good", goodCount.Load(), "bad", badCount.Load())
}

// buildSource resolves the configured backend into the uniform stream
// contract. The kafka backend ships with the binary; shard-stream and
// subscription backends plug their clients in through the transport package
// when streamloader is embedded as a library.
func buildSource(cfg *config.Config, decoder decode.Decoder) (transport.Source, string, error) {
	switch cfg.Transport.Backend {
	case "kafka":
		sub, err := kafka.NewSubscription(kafka.Config{
			Brokers:        cfg.Transport.Kafka.Brokers,
			Topic:          cfg.Transport.Kafka.Topic,
			GroupID:        cfg.Transport.Kafka.GroupID,
			ClientID:       cfg.Transport.Kafka.ClientID,
			MaxPollRecords: cfg.Transport.Kafka.MaxPollRecords,
		})
		if err != nil {
			return nil, "", err
		}
		consumer := transport.NewSubscriptionConsumer(transport.SubscriptionConfig{
			ProjectID:      cfg.Transport.Kafka.GroupID,
			SubscriptionID: cfg.Transport.Kafka.Topic,
		}, sub, decoder)
		return consumer, "kafka:" + cfg.Transport.Kafka.Topic, nil
	case "shard-stream", "subscription":
		return nil, "", fmt.Errorf("backend %q has no bundled client; wire one through the transport package", cfg.Transport.Backend)
	default:
		return nil, "", fmt.Errorf("unknown backend %q", cfg.Transport.Backend)
	}
}

// consume drains the stream, classifying good events against the schema
// state and dead-lettering bad records to the log. The writer/migrator that
// acts on Outdated and Missing tables attaches downstream; until then the
// classification outcome is surfaced for operators.
func consume(ctx context.Context, source transport.Source, tracker *state.Tracker, goodCount, badCount *atomic.Int64) error {
	stream, err := source.Stream(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	for outcome := range stream {
		if outcome.Bad != nil {
			badCount.Add(1)
			deadLetter(outcome.Bad)
			continue
		}
		goodCount.Add(1)

		id, err := eventSchema(outcome.Event)
		if err != nil {
			slog.Warn("Event carries an unusable schema reference", "error", err)
			continue
		}

		tableState := tracker.Classify(id)
		switch tableState {
		case state.TableMatch:
			slog.Debug("Table up to date", "schema", id.String())
		case state.TableOutdated:
			slog.Info("Table needs migration", "schema", id.String(), "group", id.Group().String())
		case state.TableMissing:
			slog.Info("Table needs creation", "schema", id.String(), "group", id.Group().String())
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by backend")
}

func eventSchema(evt *decode.Event) (schemaid.Identifier, error) {
	if evt.SelfDescribing != nil {
		return evt.SelfDescribing.Schema, nil
	}
	if evt.Structured != nil {
		return evt.Structured.SchemaIdentifier()
	}
	return schemaid.Identifier{}, fmt.Errorf("decoded event has no payload")
}

func deadLetter(bad *decode.BadRecord) {
	row := badrows.Wrap(bad, time.Now())
	encoded, err := badrows.Encode(row)
	if err != nil {
		slog.Error("Failed to encode bad row", "error", err)
		return
	}
	slog.Warn("Bad record dead-lettered", "row", string(encoded))
}
