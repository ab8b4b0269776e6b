// Package indexation implements the block-triggered enrichment workflow:
// reading persisted events for a committed height, calling out to the
// inscription API, and materializing inscriptions and locations.
package indexation

import (
	"context"
	"fmt"
	"log"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/looksrare/ord-indexer/internal/events"
	"github.com/looksrare/ord-indexer/internal/metadata"
	"github.com/looksrare/ord-indexer/internal/ordapi"
	"github.com/looksrare/ord-indexer/internal/script"
	"github.com/looksrare/ord-indexer/internal/store"
)

// dbClient is the subset of store.Client that Indexation depends on,
// narrowed to an interface so tests can substitute a fake.
type dbClient interface {
	FetchEventsByBlockHeight(ctx context.Context, h uint32) ([]store.Event, error)
	FetchInscriptionIDByGenesisID(ctx context.Context, genesisID string) (int64, bool, error)
	SaveInscription(ctx context.Context, d store.InscriptionDetails) (int64, error)
	SaveLocation(ctx context.Context, inscriptionID int64, blockHeight uint32, blockTime int64,
		txID, toAddress, curOutput *string, curOffset *uint64,
		fromAddress, prevOutput *string, prevOffset, value *uint64) error
}

// apiClient is the subset of ordapi.Client that Indexation depends on.
type apiClient interface {
	FetchInscriptionDetails(ctx context.Context, id events.InscriptionId) (ordapi.InscriptionDetails, error)
	FetchTx(ctx context.Context, txid string) (ordapi.Transaction, error)
	FetchBlockInfo(ctx context.Context, height uint32) (ordapi.BlockInfo, error)
}

// Indexation orchestrates enrichment of a single committed block's events.
type Indexation struct {
	db     dbClient
	api    apiClient
	params *chaincfg.Params
}

// New builds an Indexation against the given store/API clients, decoding
// addresses for the given chain.
func New(db dbClient, api apiClient, params *chaincfg.Params) *Indexation {
	return &Indexation{db: db, api: api, params: params}
}

// SyncBlocks enriches every event persisted for blockHeight. A single
// event's enrichment failure is logged and does not abort the rest of the
// block; only an error from fetching the block's events or from the shared
// block-info fetch fails the whole call (and therefore the delivery that
// triggered it).
func (x *Indexation) SyncBlocks(ctx context.Context, blockHeight uint32) error {
	log.Printf("[indexation] block committed height=%d", blockHeight)

	rows, err := x.db.FetchEventsByBlockHeight(ctx, blockHeight)
	if err != nil {
		return fmt.Errorf("indexation: fetch events for height %d: %w", blockHeight, err)
	}
	if len(rows) == 0 {
		return nil
	}

	blockInfo, err := x.api.FetchBlockInfo(ctx, blockHeight)
	if err != nil {
		return fmt.Errorf("indexation: fetch block info for height %d: %w", blockHeight, err)
	}

	for _, row := range rows {
		switch row.TypeID {
		case store.EventTypeCreated:
			if err := x.processInscriptionCreated(ctx, row, blockInfo); err != nil {
				log.Printf("[indexation] error processing inscription creation for event %d: %v", row.ID, err)
			}
		case store.EventTypeTransferred:
			if err := x.processInscriptionTransferred(ctx, row, blockInfo); err != nil {
				log.Printf("[indexation] error processing inscription transfer for event %d: %v", row.ID, err)
			}
		default:
			log.Printf("[indexation] unhandled event type: %d", row.TypeID)
		}
	}

	return nil
}

func (x *Indexation) processInscriptionCreated(ctx context.Context, row store.Event, blockInfo ordapi.BlockInfo) error {
	genesisID, err := events.ParseInscriptionId(row.InscriptionID)
	if err != nil {
		return fmt.Errorf("parse genesis id %s: %w", row.InscriptionID, err)
	}

	details, err := x.api.FetchInscriptionDetails(ctx, genesisID)
	if err != nil {
		return fmt.Errorf("fetch inscription details for %s: %w", genesisID, err)
	}

	meta := metadata.Extract(details.Metadata)
	inscriptionID, err := x.db.SaveInscription(ctx, toStoreDetails(details, meta))
	if err != nil {
		return fmt.Errorf("save inscription %s: %w", genesisID, err)
	}

	var toAddr *string
	var toValue *uint64
	var loc *events.SatPoint
	if row.Location != nil {
		parsed, err := events.ParseSatPoint(*row.Location)
		if err != nil {
			return fmt.Errorf("parse location %s: %w", *row.Location, err)
		}
		loc = &parsed
		addr, value, err := x.resolveLocation(ctx, parsed)
		if err != nil {
			return fmt.Errorf("resolve location %s: %w", parsed, err)
		}
		toAddr, toValue = addr, value
	}

	var txID, curOutput *string
	var curOffset *uint64
	if loc != nil {
		t := loc.Outpoint.Txid
		o := loc.Outpoint.String()
		off := loc.Offset
		txID, curOutput, curOffset = &t, &o, &off
	}

	return x.db.SaveLocation(ctx, inscriptionID, row.BlockHeight, blockInfo.Timestamp,
		txID, toAddr, curOutput, curOffset,
		nil, nil, nil, toValue)
}

func (x *Indexation) processInscriptionTransferred(ctx context.Context, row store.Event, blockInfo ordapi.BlockInfo) error {
	inscriptionID, found, err := x.db.FetchInscriptionIDByGenesisID(ctx, row.InscriptionID)
	if err != nil {
		return fmt.Errorf("fetch inscription by genesis id %s: %w", row.InscriptionID, err)
	}
	if !found {
		// Recovery path: a transfer arrived without its creation having
		// been enriched yet. Fetch and insert it now instead of failing.
		genesisID, err := events.ParseInscriptionId(row.InscriptionID)
		if err != nil {
			return fmt.Errorf("parse genesis id %s: %w", row.InscriptionID, err)
		}
		details, err := x.api.FetchInscriptionDetails(ctx, genesisID)
		if err != nil {
			return fmt.Errorf("fetch inscription details for %s: %w", genesisID, err)
		}
		meta := metadata.Extract(details.Metadata)
		inscriptionID, err = x.db.SaveInscription(ctx, toStoreDetails(details, meta))
		if err != nil {
			return fmt.Errorf("save recovered inscription %s: %w", genesisID, err)
		}
	}

	var toAddr, fromAddr *string
	var toValue *uint64
	if row.Location != nil {
		newLoc, err := events.ParseSatPoint(*row.Location)
		if err != nil {
			return fmt.Errorf("parse new location %s: %w", *row.Location, err)
		}
		addr, value, err := x.resolveLocation(ctx, newLoc)
		if err != nil {
			return fmt.Errorf("resolve new location %s: %w", newLoc, err)
		}
		toAddr, toValue = addr, value
	}
	if row.OldLocation != nil {
		oldLoc, err := events.ParseSatPoint(*row.OldLocation)
		if err != nil {
			return fmt.Errorf("parse old location %s: %w", *row.OldLocation, err)
		}
		addr, _, err := x.resolveLocation(ctx, oldLoc)
		if err != nil {
			return fmt.Errorf("resolve old location %s: %w", oldLoc, err)
		}
		fromAddr = addr
	}

	var curTxID, curOutput *string
	var curOffset *uint64
	if row.Location != nil {
		newLoc, _ := events.ParseSatPoint(*row.Location)
		t, o, off := newLoc.Outpoint.Txid, newLoc.Outpoint.String(), newLoc.Offset
		curTxID, curOutput, curOffset = &t, &o, &off
	}

	var prevOutput *string
	var prevOffset *uint64
	if row.OldLocation != nil {
		oldLoc, _ := events.ParseSatPoint(*row.OldLocation)
		o, off := oldLoc.Outpoint.String(), oldLoc.Offset
		prevOutput, prevOffset = &o, &off
	}

	return x.db.SaveLocation(ctx, inscriptionID, row.BlockHeight, blockInfo.Timestamp,
		curTxID, toAddr, curOutput, curOffset,
		fromAddr, prevOutput, prevOffset, toValue)
}

// resolveLocation fetches the transaction for a SatPoint's outpoint and
// derives the address and value of the output it refers to.
func (x *Indexation) resolveLocation(ctx context.Context, sp events.SatPoint) (*string, *uint64, error) {
	tx, err := x.api.FetchTx(ctx, sp.Outpoint.Txid)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tx %s: %w", sp.Outpoint.Txid, err)
	}
	if int(sp.Outpoint.Vout) >= len(tx.Outputs) {
		return nil, nil, fmt.Errorf("output %d not present in tx %s", sp.Outpoint.Vout, sp.Outpoint.Txid)
	}
	out := tx.Outputs[sp.Outpoint.Vout]

	addr, err := script.AddressFromScript(out.ScriptPubkey, x.params)
	if err != nil {
		return nil, nil, fmt.Errorf("derive address: %w", err)
	}
	value := out.Value
	if addr == "" {
		return nil, &value, nil
	}
	return &addr, &value, nil
}

func toStoreDetails(d ordapi.InscriptionDetails, meta *string) store.InscriptionDetails {
	parentIDs := make([]string, len(d.ParentIds))
	for i, p := range d.ParentIds {
		parentIDs[i] = p.String()
	}
	childrenIDs := make([]string, len(d.ChildrenIds))
	for i, c := range d.ChildrenIds {
		childrenIDs[i] = c.String()
	}

	var contentType *string
	if d.ContentType != "" {
		ct := d.ContentType
		contentType = &ct
	}

	return store.InscriptionDetails{
		GenesisID:   d.GenesisId.String(),
		Number:      d.Number,
		Fee:         d.Fee,
		Charms:      int32(d.Charms),
		SatNumber:   d.SatNumber,
		ParentIDs:   parentIDs,
		ChildrenIDs: childrenIDs,
		ContentType: contentType,
		Metadata:    meta,
	}
}
