// Package store is the database client: idempotent persistence of events,
// inscriptions, and locations to PostgreSQL.
package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/looksrare/ord-indexer/internal/events"
)

// EventTypeCreated and EventTypeTransferred are the type_id values stored
// alongside each event row.
const (
	EventTypeCreated     int16 = 1
	EventTypeTransferred int16 = 2
)

// Client wraps a pooled PostgreSQL connection.
type Client struct {
	db *pgxpool.Pool
}

// New connects to dbURL, applying DB_MAX_OPEN_CONNS / DB_MAX_IDLE_CONNS pool
// overrides if set.
func New(ctx context.Context, dbURL string) (*Client, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse db url: %w", err)
	}

	if maxConnStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxConnStr != "" {
		if maxConn, err := strconv.Atoi(maxConnStr); err == nil {
			config.MaxConns = int32(maxConn)
		}
	}
	if minConnStr := os.Getenv("DB_MAX_IDLE_CONNS"); minConnStr != "" {
		if minConn, err := strconv.Atoi(minConnStr); err == nil {
			config.MinConns = int32(minConn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &Client{db: pool}, nil
}

// Migrate applies the bundled schema file. It is safe to call on every
// startup since the schema uses CREATE TABLE IF NOT EXISTS throughout.
func (c *Client) Migrate(ctx context.Context, schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("store: read schema file: %w", err)
	}
	if _, err := c.db.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// Close drains the pool.
func (c *Client) Close() {
	c.db.Close()
}

// Event is a persisted row from the event table.
type Event struct {
	ID            int64
	TypeID        int16
	BlockHeight   uint32
	InscriptionID string
	Location      *string
	OldLocation   *string
}

// SaveEventCreated inserts an InscriptionCreated event if it is not already
// present under its natural key.
func (c *Client) SaveEventCreated(ctx context.Context, h uint32, inscrID events.InscriptionId, loc *events.SatPoint) error {
	var locStr *string
	if loc != nil {
		s := loc.String()
		locStr = &s
	}
	_, err := c.db.Exec(ctx, `
		INSERT INTO event (type_id, block_height, inscription_id, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (type_id, block_height, inscription_id, location) WHERE type_id = 1 DO NOTHING`,
		EventTypeCreated, h, inscrID.String(), locStr,
	)
	if err != nil {
		return fmt.Errorf("store: save event created %s: %w", inscrID, err)
	}
	return nil
}

// SaveEventTransferred inserts an InscriptionTransferred event if it is not
// already present under its natural key.
func (c *Client) SaveEventTransferred(ctx context.Context, h uint32, inscrID events.InscriptionId, newLoc, oldLoc events.SatPoint) error {
	newStr, oldStr := newLoc.String(), oldLoc.String()
	_, err := c.db.Exec(ctx, `
		INSERT INTO event (type_id, block_height, inscription_id, location, old_location)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (type_id, block_height, inscription_id, location, old_location) WHERE type_id = 2 DO NOTHING`,
		EventTypeTransferred, h, inscrID.String(), newStr, oldStr,
	)
	if err != nil {
		return fmt.Errorf("store: save event transferred %s: %w", inscrID, err)
	}
	return nil
}

// FetchEventsByBlockHeight returns every event row for height h, ordered so
// that all creations precede any transfer.
func (c *Client) FetchEventsByBlockHeight(ctx context.Context, h uint32) ([]Event, error) {
	rows, err := c.db.Query(ctx, `
		SELECT id, type_id, block_height, inscription_id, location, old_location
		FROM event
		WHERE block_height = $1
		ORDER BY type_id ASC, id ASC`, h)
	if err != nil {
		return nil, fmt.Errorf("store: fetch events for height %d: %w", h, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TypeID, &e.BlockHeight, &e.InscriptionID, &e.Location, &e.OldLocation); err != nil {
			return nil, fmt.Errorf("store: scan event row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate event rows: %w", err)
	}
	return out, nil
}

// FetchInscriptionIDByGenesisID resolves the surrogate id for a genesis id,
// returning (0, false) if no inscription has been saved yet.
func (c *Client) FetchInscriptionIDByGenesisID(ctx context.Context, genesisID string) (int64, bool, error) {
	var id int64
	err := c.db.QueryRow(ctx, `SELECT id FROM inscription WHERE genesis_id = $1`, genesisID).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: fetch inscription by genesis id %s: %w", genesisID, err)
	}
	return id, true, nil
}

// InscriptionDetails is what SaveInscription upserts.
type InscriptionDetails struct {
	GenesisID   string
	Number      int64
	Fee         int64
	Charms      int32
	SatNumber   *int64
	ParentIDs   []string
	ChildrenIDs []string
	ContentType *string
	Metadata    *string
}

// SaveInscription upserts an inscription keyed by genesis_id. Nullable
// fields are coalesced against the existing row so a partial re-enrichment
// never erases previously stored data.
func (c *Client) SaveInscription(ctx context.Context, d InscriptionDetails) (int64, error) {
	var id int64
	err := c.db.QueryRow(ctx, `
		INSERT INTO inscription (
			genesis_id, number, fee, charms, sat_number,
			parent_ids, children_ids, content_type, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (genesis_id) DO UPDATE SET
			number = EXCLUDED.number,
			fee = COALESCE(EXCLUDED.fee, inscription.fee),
			charms = EXCLUDED.charms,
			sat_number = COALESCE(EXCLUDED.sat_number, inscription.sat_number),
			parent_ids = COALESCE(EXCLUDED.parent_ids, inscription.parent_ids),
			children_ids = COALESCE(EXCLUDED.children_ids, inscription.children_ids),
			content_type = COALESCE(EXCLUDED.content_type, inscription.content_type),
			metadata = COALESCE(EXCLUDED.metadata, inscription.metadata)
		RETURNING id`,
		d.GenesisID, d.Number, d.Fee, d.Charms, d.SatNumber,
		d.ParentIDs, d.ChildrenIDs, d.ContentType, d.Metadata, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: save inscription %s: %w", d.GenesisID, err)
	}
	return id, nil
}

// SaveLocation appends a location row for an inscription's on-chain
// position, unless an identical row already exists for it.
func (c *Client) SaveLocation(
	ctx context.Context,
	inscriptionID int64,
	blockHeight uint32,
	blockTime int64,
	txID *string,
	toAddress *string,
	curOutput *string,
	curOffset *uint64,
	fromAddress *string,
	prevOutput *string,
	prevOffset *uint64,
	value *uint64,
) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO location (
			inscription_id, block_height, block_time, tx_id,
			to_address, cur_output, cur_offset,
			from_address, prev_output, prev_offset, value
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (
			inscription_id, block_height,
			(COALESCE(tx_id, '')), (COALESCE(cur_output, '')), (COALESCE(cur_offset, -1)),
			(COALESCE(prev_output, '')), (COALESCE(prev_offset, -1))
		) DO NOTHING`,
		inscriptionID, blockHeight, time.Unix(blockTime, 0).UTC(), txID,
		toAddress, curOutput, curOffset,
		fromAddress, prevOutput, prevOffset, value,
	)
	if err != nil {
		return fmt.Errorf("store: save location for inscription %d at height %d: %w", inscriptionID, blockHeight, err)
	}
	return nil
}

// RecordReplayCheckpoint records the last height a maintenance tool
// successfully replayed for serviceName.
func (c *Client) RecordReplayCheckpoint(ctx context.Context, serviceName string, height uint32) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO indexing_checkpoints (service_name, last_height, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (service_name) DO UPDATE SET last_height = EXCLUDED.last_height, updated_at = EXCLUDED.updated_at`,
		serviceName, height, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("store: record checkpoint for %s: %w", serviceName, err)
	}
	return nil
}

// redactDSNFallback matches a postgres(ql):// DSN with an inline password
// when the DSN otherwise fails url.Parse.
var redactDSNFallback = regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/?#]+):([^@]+)@`)
var redactKVFallback = regexp.MustCompile(`(?i)(password=)(\S+)`)

// RedactDatabaseURL masks the password portion of a database URL for safe
// inclusion in logs.
func RedactDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		u.RawQuery = ""
		if u.User == nil {
			return u.String()
		}
		user := u.User.Username()
		if user == "" {
			user = "user"
		}
		// url.UserPassword would percent-escape the mask, so splice it in
		// after the (escaped) username instead.
		u.User = url.User(user)
		return strings.Replace(u.String(), "@", ":****@", 1)
	}

	if redactDSNFallback.MatchString(raw) {
		return redactDSNFallback.ReplaceAllString(raw, `$1:****@`)
	}
	return redactKVFallback.ReplaceAllString(raw, `$1****`)
}
