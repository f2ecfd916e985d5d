package common

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrInvalidTxFields      = fmt.Errorf("%w: invalid tx fields", ErrInvalidArgument)
	ErrNoOpReturn           = fmt.Errorf("%w: no OP_RETURN output", ErrMalformedPayload)
	ErrInvalidPublicKey     = fmt.Errorf("%w: invalid public key", ErrInvalidArgument)
	ErrInvalidLockingScript = fmt.Errorf("%w: invalid locking script", ErrInvalidArgument)
)

// TxFields are the normalized parts of a legacy (non-witness) serialized
// base-chain transaction as submitted by relayers.
type TxFields struct {
	Version  [4]byte
	Vin      []byte
	Vout     []byte
	Locktime [4]byte
}

func (f *TxFields) Bytes() []byte {
	return bytes.Join([][]byte{f.Version[:], f.Vin, f.Vout, f.Locktime[:]}, nil)
}

// TxID is the double-SHA256 of the concatenated fields. It equals the
// transaction hash of the decoded tx and serves as the deposit fingerprint.
func (f *TxFields) TxID() chainhash.Hash {
	return chainhash.DoubleHashH(f.Bytes())
}

func (f *TxFields) MsgTx() (*wire.MsgTx, error) {
	if len(f.Vin) == 0 || len(f.Vout) == 0 {
		return nil, ErrInvalidTxFields
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.DeserializeNoWitness(bytes.NewReader(f.Bytes())); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTxFields, err)
	}
	return tx, nil
}

// TxFieldsFromMsgTx splits the legacy serialization of tx into its fields.
func TxFieldsFromMsgTx(tx *wire.MsgTx) (*TxFields, error) {
	full, err := serializeNoWitness(tx)
	if err != nil {
		return nil, err
	}

	noOut := tx.Copy()
	noOut.TxOut = nil
	partial, err := serializeNoWitness(noOut)
	if err != nil {
		return nil, err
	}

	// partial = version | vin | varint(0) | locktime
	vinEnd := len(partial) - 5
	f := &TxFields{
		Vin:  append([]byte{}, full[4:vinEnd]...),
		Vout: append([]byte{}, full[vinEnd:len(full)-4]...),
	}
	copy(f.Version[:], full[:4])
	copy(f.Locktime[:], full[len(full)-4:])
	return f, nil
}

func serializeNoWitness(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.SerializeNoWitness(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValueToLockingScript returns the value of the first output that pays
// exactly to script.
func ValueToLockingScript(tx *wire.MsgTx, script []byte) (int64, bool) {
	for _, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, script) {
			return out.Value, true
		}
	}
	return 0, false
}

// OpReturnData returns the data pushed by the first OP_RETURN output.
func OpReturnData(tx *wire.MsgTx) ([]byte, error) {
	for _, out := range tx.TxOut {
		if !txscript.IsNullData(out.PkScript) {
			continue
		}
		pushes, err := txscript.PushedData(out.PkScript)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return bytes.Join(pushes, nil), nil
	}
	return nil, ErrNoOpReturn
}

// ValidatePublicKey accepts compressed secp256k1 public keys only.
func ValidatePublicKey(pubKey []byte) error {
	if len(pubKey) != btcec.PubKeyBytesLenCompressed {
		return fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(pubKey))
	}
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return nil
}

// ValidateLockingScript accepts the standard single-owner and script-hash
// output classes that a locker can spend from.
func ValidateLockingScript(script []byte) error {
	if len(script) == 0 {
		return ErrInvalidLockingScript
	}
	switch class := txscript.GetScriptClass(script); class {
	case txscript.PubKeyHashTy,
		txscript.ScriptHashTy,
		txscript.WitnessV0PubKeyHashTy,
		txscript.WitnessV0ScriptHashTy,
		txscript.WitnessV1TaprootTy:
		return nil
	default:
		return fmt.Errorf("%w: class %s", ErrInvalidLockingScript, class)
	}
}

// P2PKHLockingScript builds the pay-to-pubkey-hash script of pubKey.
func P2PKHLockingScript(pubKey []byte, params *chaincfg.Params) ([]byte, error) {
	if err := ValidatePublicKey(pubKey); err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey), params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// LockingScriptFromAddress builds the output script of a base-chain address.
func LockingScriptFromAddress(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, errors.Join(ErrInvalidLockingScript, err)
	}
	return txscript.PayToAddrScript(addr)
}

func IsValidBtcAddress(address string, cfg *chaincfg.Params) bool {
	if _, err := btcutil.DecodeAddress(address, cfg); err != nil {
		return false
	}
	return true
}

// ChainParams maps a network name to its parameters, defaulting to mainnet.
func ChainParams(name string) *chaincfg.Params {
	switch name {
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "simnet":
		return &chaincfg.SimNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
