// Command replay-block re-runs block enrichment for operator-specified
// heights, bypassing the broker entirely. Useful for recovering from a
// period where the block consumer was down or the inscription API was
// unreachable.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/looksrare/ord-indexer/internal/indexation"
	"github.com/looksrare/ord-indexer/internal/ordapi"
	"github.com/looksrare/ord-indexer/internal/script"
	"github.com/looksrare/ord-indexer/internal/store"
)

func main() {
	databaseURL := flag.String("database-url", "", "database connection url")
	ordAPIURL := flag.String("ord-api-url", "", "base URL of the ordinals inscription API")
	network := flag.String("network", "mainnet", "bitcoin chain network for address derivation")
	heightsFlag := flag.String("heights", "", "comma-separated list of block heights to replay")
	flag.Parse()

	if *databaseURL == "" || *ordAPIURL == "" || *heightsFlag == "" {
		log.Fatal("--database-url, --ord-api-url and --heights are required")
	}

	heights, err := parseHeights(*heightsFlag)
	if err != nil {
		log.Fatalf("invalid --heights: %v", err)
	}

	ctx := context.Background()
	db, err := store.New(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database %s: %v", store.RedactDatabaseURL(*databaseURL), err)
	}
	defer db.Close()

	api := ordapi.New(*ordAPIURL)
	params := script.ChainParams(*network)
	x := indexation.New(db, api, params)

	for _, h := range heights {
		log.Printf("[replay-block] replaying height=%d", h)
		if err := x.SyncBlocks(ctx, h); err != nil {
			log.Printf("[replay-block] failed to replay height %d: %v", h, err)
			continue
		}
		if err := recordCheckpoint(ctx, db, h); err != nil {
			log.Printf("[replay-block] failed to record checkpoint for height %d: %v", h, err)
		}
	}
}

func parseHeights(raw string) ([]uint32, error) {
	parts := strings.Split(raw, ",")
	heights := make([]uint32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, err
		}
		heights = append(heights, uint32(n))
	}
	return heights, nil
}

func recordCheckpoint(ctx context.Context, db *store.Client, height uint32) error {
	return db.RecordReplayCheckpoint(ctx, "replay-block", height)
}
