package script

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

func TestAddressFromScriptP2PKH(t *testing.T) {
	params := ChainParams("mainnet")
	addr, err := btcutil.DecodeAddress("1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", params)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		t.Fatalf("PayToAddrScript: %v", err)
	}

	got, err := AddressFromScript(pkScript, params)
	if err != nil {
		t.Fatalf("AddressFromScript: %v", err)
	}
	if got != addr.EncodeAddress() {
		t.Fatalf("got %q want %q", got, addr.EncodeAddress())
	}
}

func TestAddressFromScriptNonStandard(t *testing.T) {
	// OP_RETURN payload: not attributable to any address.
	script, err := hex.DecodeString("6a026869")
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	got, err := AddressFromScript(script, ChainParams("mainnet"))
	if err != nil {
		t.Fatalf("AddressFromScript: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty address for non-standard script, got %q", got)
	}
}

func TestChainParamsSelectsNetwork(t *testing.T) {
	if ChainParams("mainnet").Net == ChainParams("testnet").Net {
		t.Fatal("expected distinct network magic for mainnet vs testnet")
	}
	if ChainParams("unknown").Net != ChainParams("mainnet").Net {
		t.Fatal("expected unrecognized network name to default to mainnet")
	}
}
