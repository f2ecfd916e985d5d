package common

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// RandPubKey returns a random compressed secp256k1 public key.
func RandPubKey() []byte {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil
	}
	return priv.PubKey().SerializeCompressed()
}

// RandLockingScript returns the P2PKH script of a random key on mainnet.
func RandLockingScript() []byte {
	script, err := P2PKHLockingScript(RandPubKey(), ChainParams("mainnet"))
	if err != nil {
		return nil
	}
	return script
}

// NewDepositTx crafts a deposit tx spending a random outpoint: output #0
// pays value to lockingScript, output #1 carries payload as OP_RETURN data.
func NewDepositTx(lockingScript []byte, value int64, payload []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	var prevHash chainhash.Hash
	copy(prevHash[:], RandBytes(32))
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), RandBytes(107), nil))
	tx.AddTxOut(wire.NewTxOut(value, lockingScript))
	if payload != nil {
		script, err := txscript.NullDataScript(payload)
		if err != nil {
			return nil
		}
		tx.AddTxOut(wire.NewTxOut(0, script))
	}
	return tx
}

// NewDepositTxFields is NewDepositTx returning normalized fields.
func NewDepositTxFields(lockingScript []byte, value int64, payload []byte) *TxFields {
	f, err := TxFieldsFromMsgTx(NewDepositTx(lockingScript, value, payload))
	if err != nil {
		return nil
	}
	return f
}
