// Package script derives Bitcoin addresses from transaction output scripts.
package script

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AddressFromScript decodes a script_pubkey into its address string, using
// the supplied chain parameters. A non-standard or unrecognized script
// yields ("", nil): the caller is expected to still persist the output's
// value even without an address.
func AddressFromScript(scriptPubkey []byte, params *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptPubkey, params)
	if err != nil {
		// Non-standard scripts are common (OP_RETURN, bare multisig) and
		// are not an error condition for the caller.
		return "", nil
	}
	if len(addrs) == 0 {
		return "", nil
	}
	return addrs[0].EncodeAddress(), nil
}

// ChainParams resolves a named network ("mainnet", "testnet", "signet",
// "regtest") to its chaincfg parameters.
func ChainParams(network string) *chaincfg.Params {
	switch network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
