package indexation

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/looksrare/ord-indexer/internal/events"
	"github.com/looksrare/ord-indexer/internal/ordapi"
	"github.com/looksrare/ord-indexer/internal/store"
)

type fakeDB struct {
	events            []store.Event
	inscriptionByGID  map[string]int64
	nextID            int64
	savedInscriptions []store.InscriptionDetails
	savedLocations    int
}

func (f *fakeDB) FetchEventsByBlockHeight(ctx context.Context, h uint32) ([]store.Event, error) {
	return f.events, nil
}

func (f *fakeDB) FetchInscriptionIDByGenesisID(ctx context.Context, genesisID string) (int64, bool, error) {
	id, ok := f.inscriptionByGID[genesisID]
	return id, ok, nil
}

func (f *fakeDB) SaveInscription(ctx context.Context, d store.InscriptionDetails) (int64, error) {
	f.nextID++
	if f.inscriptionByGID == nil {
		f.inscriptionByGID = map[string]int64{}
	}
	f.inscriptionByGID[d.GenesisID] = f.nextID
	f.savedInscriptions = append(f.savedInscriptions, d)
	return f.nextID, nil
}

func (f *fakeDB) SaveLocation(ctx context.Context, inscriptionID int64, blockHeight uint32, blockTime int64,
	txID, toAddress, curOutput *string, curOffset *uint64,
	fromAddress, prevOutput *string, prevOffset, value *uint64) error {
	f.savedLocations++
	return nil
}

type fakeAPI struct {
	details map[string]ordapi.InscriptionDetails
	txs     map[string]ordapi.Transaction
}

func (f *fakeAPI) FetchInscriptionDetails(ctx context.Context, id events.InscriptionId) (ordapi.InscriptionDetails, error) {
	return f.details[id.String()], nil
}

func (f *fakeAPI) FetchTx(ctx context.Context, txid string) (ordapi.Transaction, error) {
	return f.txs[txid], nil
}

func (f *fakeAPI) FetchBlockInfo(ctx context.Context, height uint32) (ordapi.BlockInfo, error) {
	return ordapi.BlockInfo{Timestamp: 1700000000}, nil
}

func TestSyncBlocksNoEventsReturnsEarly(t *testing.T) {
	db := &fakeDB{}
	api := &fakeAPI{}
	x := New(db, api, &chaincfg.MainNetParams)

	if err := x.SyncBlocks(context.Background(), 800000); err != nil {
		t.Fatalf("SyncBlocks: %v", err)
	}
	if len(db.savedInscriptions) != 0 || db.savedLocations != 0 {
		t.Fatal("expected no writes for empty event set")
	}
}

func TestSyncBlocksProcessesCreation(t *testing.T) {
	genesisID := "abcd1234i0"
	locStr := "abcd1234:0:0"

	db := &fakeDB{
		events: []store.Event{
			{ID: 1, TypeID: store.EventTypeCreated, BlockHeight: 800000, InscriptionID: genesisID, Location: &locStr},
		},
	}
	api := &fakeAPI{
		details: map[string]ordapi.InscriptionDetails{
			genesisID: {GenesisId: mustParseID(t, genesisID), Number: 1},
		},
		txs: map[string]ordapi.Transaction{
			"abcd1234": {Outputs: []ordapi.TxOutput{{Value: 546}}},
		},
	}
	x := New(db, api, &chaincfg.MainNetParams)

	if err := x.SyncBlocks(context.Background(), 800000); err != nil {
		t.Fatalf("SyncBlocks: %v", err)
	}
	if len(db.savedInscriptions) != 1 {
		t.Fatalf("expected 1 saved inscription, got %d", len(db.savedInscriptions))
	}
	if db.savedLocations != 1 {
		t.Fatalf("expected 1 saved location, got %d", db.savedLocations)
	}
}

func TestSyncBlocksRecoversUnknownTransfer(t *testing.T) {
	genesisID := "abcd1234i0"
	newLoc := "beef0000:1:0"
	oldLoc := "abcd1234:0:0"

	db := &fakeDB{
		events: []store.Event{
			{ID: 1, TypeID: store.EventTypeTransferred, BlockHeight: 800000, InscriptionID: genesisID, Location: &newLoc, OldLocation: &oldLoc},
		},
	}
	api := &fakeAPI{
		details: map[string]ordapi.InscriptionDetails{
			genesisID: {GenesisId: mustParseID(t, genesisID), Number: 1},
		},
		txs: map[string]ordapi.Transaction{
			"beef0000": {Outputs: []ordapi.TxOutput{{Value: 546}, {Value: 100}}},
			"abcd1234": {Outputs: []ordapi.TxOutput{{Value: 546}}},
		},
	}
	x := New(db, api, &chaincfg.MainNetParams)

	if err := x.SyncBlocks(context.Background(), 800000); err != nil {
		t.Fatalf("SyncBlocks: %v", err)
	}
	if len(db.savedInscriptions) != 1 {
		t.Fatalf("expected recovery to save 1 inscription, got %d", len(db.savedInscriptions))
	}
	if db.savedLocations != 1 {
		t.Fatalf("expected 1 saved location, got %d", db.savedLocations)
	}
}

func mustParseID(t *testing.T, s string) events.InscriptionId {
	t.Helper()
	id, err := events.ParseInscriptionId(s)
	if err != nil {
		t.Fatalf("ParseInscriptionId(%q): %v", s, err)
	}
	return id
}
