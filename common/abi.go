package common

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// EncodePacked concatenates the tightly packed encoding of values, the way
// abi.encodePacked does. Unsupported types are skipped.
func EncodePacked(values ...interface{}) []byte {
	var res [][]byte
	for _, value := range values {
		switch v := value.(type) {
		case string:
			res = append(res, []byte(v))
		case []byte:
			res = append(res, v)
		case [32]byte:
			res = append(res, v[:])
		case uint8:
			res = append(res, []byte{v})
		case uint16:
			res = append(res, binary.BigEndian.AppendUint16(nil, v))
		case uint32:
			res = append(res, binary.BigEndian.AppendUint32(nil, v))
		case uint64:
			res = append(res, binary.BigEndian.AppendUint64(nil, v))
		case *big.Int:
			res = append(res, math.U256Bytes(new(big.Int).Set(v)))
		case common.Hash:
			res = append(res, v[:])
		case chainhash.Hash:
			res = append(res, v[:])
		case common.Address:
			res = append(res, v[:])
		case []common.Address:
			for _, a := range v {
				res = append(res, a[:])
			}
		}
	}
	return bytes.Join(res, nil)
}

// Keccak256Packed hashes the packed encoding of values.
func Keccak256Packed(values ...interface{}) common.Hash {
	return crypto.Keccak256Hash(EncodePacked(values...))
}
