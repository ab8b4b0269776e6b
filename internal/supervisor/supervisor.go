// Package supervisor owns the process lifecycle: wiring the broker
// connection, the database pool, and the API client, spawning the two
// consumer tasks, and propagating shutdown.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/looksrare/ord-indexer/internal/amqpconn"
	"github.com/looksrare/ord-indexer/internal/config"
	"github.com/looksrare/ord-indexer/internal/consume"
	"github.com/looksrare/ord-indexer/internal/events"
	"github.com/looksrare/ord-indexer/internal/indexation"
	"github.com/looksrare/ord-indexer/internal/ordapi"
	"github.com/looksrare/ord-indexer/internal/publish"
	"github.com/looksrare/ord-indexer/internal/script"
	"github.com/looksrare/ord-indexer/internal/store"
)

// Config carries the contractual CLI flags plus resolved settings.
type Config struct {
	BlocksQueue       string
	InscriptionsQueue string
	DatabaseURL       string
	OrdAPIURL         string
	SchemaPath        string
	Settings          *config.Settings
}

// Run wires every component and blocks until a termination signal arrives
// or a consumer or the publisher fails unrecoverably, in which case it
// returns that error (main then exits with code 1).
func Run(ctx context.Context, cfg Config) error {
	log.Printf("[supervisor] connecting to database %s", store.RedactDatabaseURL(cfg.DatabaseURL))
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("supervisor: connect db: %w", err)
	}
	defer db.Close()

	if cfg.SchemaPath != "" {
		if err := db.Migrate(ctx, cfg.SchemaPath); err != nil {
			return fmt.Errorf("supervisor: apply schema: %w", err)
		}
	}

	brokerAddr := cfg.Settings.BrokerAddr()
	log.Printf("[supervisor] connecting to broker")
	conn, ch, err := amqpconn.Dial(brokerAddr)
	if err != nil {
		return fmt.Errorf("supervisor: connect broker: %w", err)
	}
	defer conn.Close()

	blockCh, err := amqpconn.OpenChannel(conn)
	if err != nil {
		return fmt.Errorf("supervisor: open block consumer channel: %w", err)
	}
	eventCh, err := amqpconn.OpenChannel(conn)
	if err != nil {
		return fmt.Errorf("supervisor: open event consumer channel: %w", err)
	}

	api := ordapi.New(cfg.OrdAPIURL)
	params := script.ChainParams(cfg.Settings.Network())
	x := indexation.New(db, api, params)

	pub := publish.New(conn, ch, cfg.Settings.ExchangeName())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		pub.Run(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case fatal := <-pub.Fatal:
			errCh <- fatal
		case <-runCtx.Done():
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tag := amqpconn.GenerateConsumerTag("lr-ord-blocks")
		err := consume.Loop(runCtx, blockCh, cfg.BlocksQueue, tag, blockHandler(x))
		if err != nil && runCtx.Err() == nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tag := amqpconn.GenerateConsumerTag("lr-ord-events")
		err := consume.Loop(runCtx, eventCh, cfg.InscriptionsQueue, tag, eventHandler(db))
		if err != nil && runCtx.Err() == nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("[supervisor] shutdown signal received")
		cancel()
	case err := <-errCh:
		log.Printf("[supervisor] unrecoverable consumer error: %v", err)
		cancel()
		wg.Wait()
		return err
	case <-ctx.Done():
		cancel()
	}

	wg.Wait()
	return nil
}

func blockHandler(x *indexation.Indexation) consume.Handler {
	return func(ctx context.Context, e events.Event) error {
		if e.Kind != events.KindBlockCommitted {
			log.Printf("[supervisor] ignoring non-block event on blocks queue: %s", e.Kind)
			return nil
		}
		return x.SyncBlocks(ctx, e.Height)
	}
}

func eventHandler(db *store.Client) consume.Handler {
	return func(ctx context.Context, e events.Event) error {
		switch e.Kind {
		case events.KindInscriptionCreated:
			return db.SaveEventCreated(ctx, e.BlockHeight, e.InscriptionId, e.Location)
		case events.KindInscriptionTransferred:
			return db.SaveEventTransferred(ctx, e.BlockHeight, e.InscriptionId, e.NewLocation, e.OldLocation)
		default:
			log.Printf("[supervisor] ignoring unhandled event kind: %s", e.Kind)
			return nil
		}
	}
}
