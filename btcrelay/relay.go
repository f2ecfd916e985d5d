package btcrelay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common/lru"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/database"
)

var (
	ErrUnknownBlock    = fmt.Errorf("%w: unknown block", common.ErrProofInvalid)
	ErrHeaderNotLinked = fmt.Errorf("%w: header does not extend its parent", common.ErrInvalidArgument)
	ErrHeaderConflict  = fmt.Errorf("%w: another header is stored at this height", common.ErrInvalidState)
	ErrInvalidHeader   = fmt.Errorf("%w: invalid header", common.ErrInvalidArgument)
	ErrInvalidProof    = fmt.Errorf("%w: malformed merkle proof", common.ErrProofInvalid)
)

var (
	keyTip       = []byte("btcrelay:tip")
	headerPrefix = []byte("btcrelay:header:")
)

var _ agreement.InclusionOracle = (*Relay)(nil)

type Config struct {
	// MinConfirmations is the number of blocks, the including one counted,
	// required before a tx is accepted.
	MinConfirmations uint64
	CacheSize        int
}

// Relay stores base-chain headers submitted by relayers and verifies tx
// inclusion against their merkle roots. It trusts the submitted headers.
type Relay struct {
	cfg *Config
	db  database.Database

	mu     sync.RWMutex
	tip    uint64
	hasTip bool
	cache  *lru.Cache[uint64, wire.BlockHeader]
}

func New(db database.Database, cfg *Config) (*Relay, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	r := &Relay{
		cfg:   cfg,
		db:    db,
		cache: lru.NewCache[uint64, wire.BlockHeader](size),
	}

	v, err := db.Get(keyTip)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if err == nil {
		if len(v) != 8 {
			return nil, fmt.Errorf("corrupted tip record of %d bytes", len(v))
		}
		r.tip = binary.BigEndian.Uint64(v)
		r.hasTip = true
	}
	return r, nil
}

func headerKey(height uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, headerPrefix...), height)
}

// Tip returns the highest stored height.
func (r *Relay) Tip() (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tip, r.hasTip
}

// Header returns the header stored at height.
func (r *Relay) Header(height uint64) (*wire.BlockHeader, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.header(height)
}

func (r *Relay) header(height uint64) (*wire.BlockHeader, bool, error) {
	if h, ok := r.cache.Get(height); ok {
		return &h, true, nil
	}
	v, err := r.db.Get(headerKey(height))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var h wire.BlockHeader
	if err := h.Deserialize(bytes.NewReader(v)); err != nil {
		return nil, false, fmt.Errorf("corrupted header at %d: %w", height, err)
	}
	r.cache.Add(height, h)
	return &h, true, nil
}

// SubmitRawHeader decodes an 80-byte serialized header and submits it.
func (r *Relay) SubmitRawHeader(height uint64, raw []byte) error {
	if len(raw) != wire.MaxBlockHeaderPayload {
		return fmt.Errorf("%w: length %d", ErrInvalidHeader, len(raw))
	}
	var h wire.BlockHeader
	if err := h.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return r.SubmitHeader(height, &h)
}

// SubmitHeader stores header at height. A header whose parent is known
// must link to it. Resubmitting a stored header is a no-op.
func (r *Relay) SubmitHeader(height uint64, header *wire.BlockHeader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := header.BlockHash()
	log := logger.WithFields(logger.Fields{"height": height, "hash": hash.String()})

	stored, ok, err := r.header(height)
	if err != nil {
		return err
	}
	if ok {
		if stored.BlockHash() == hash {
			return nil
		}
		return fmt.Errorf("%w: %d", ErrHeaderConflict, height)
	}

	if height > 0 {
		parent, ok, err := r.header(height - 1)
		if err != nil {
			return err
		}
		if ok && parent.BlockHash() != header.PrevBlock {
			return fmt.Errorf("%w: prev %s", ErrHeaderNotLinked, header.PrevBlock)
		}
	}
	if child, ok, err := r.header(height + 1); err != nil {
		return err
	} else if ok && child.PrevBlock != hash {
		return fmt.Errorf("%w: child prev %s", ErrHeaderNotLinked, child.PrevBlock)
	}

	var buf bytes.Buffer
	if err := header.Serialize(&buf); err != nil {
		return err
	}
	batch := database.NewBatch()
	batch.Put(headerKey(height), buf.Bytes())
	if !r.hasTip || height > r.tip {
		batch.Put(keyTip, binary.BigEndian.AppendUint64(nil, height))
	}
	if err := r.db.Write(batch); err != nil {
		log.WithError(err).Error("failed to store header")
		return err
	}

	r.cache.Add(height, *header)
	if !r.hasTip || height > r.tip {
		r.tip = height
		r.hasTip = true
	}
	log.Debug("header stored")
	return nil
}

// Verify reports whether txID is included in the block at blockHeight and
// the block has MinConfirmations. Unknown blocks are an error, too few
// confirmations or a failing proof are false.
func (r *Relay) Verify(txID chainhash.Hash, blockHeight uint64, proof *agreement.MerkleProof) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	header, ok, err := r.header(blockHeight)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownBlock, blockHeight)
	}

	if confirmations := r.tip - blockHeight + 1; confirmations < r.cfg.MinConfirmations {
		logger.WithFields(logger.Fields{
			"txId":          txID.String(),
			"height":        blockHeight,
			"confirmations": confirmations,
		}).Debug("not enough confirmations")
		return false, nil
	}

	root, err := MerkleRoot(txID, proof)
	if err != nil {
		return false, err
	}
	return root == header.MerkleRoot, nil
}

// MerkleRoot folds the proof siblings into txID. Bit i of the index tells
// whether the running hash is the right (1) or left (0) child at level i.
func MerkleRoot(txID chainhash.Hash, proof *agreement.MerkleProof) (chainhash.Hash, error) {
	if proof == nil {
		return chainhash.Hash{}, ErrInvalidProof
	}
	siblings, err := proof.Siblings()
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if len(siblings) < 64 && proof.Index>>uint(len(siblings)) != 0 {
		return chainhash.Hash{}, fmt.Errorf("%w: index %d beyond %d levels", ErrInvalidProof, proof.Index, len(siblings))
	}

	h := txID
	index := proof.Index
	for i := range siblings {
		if index&1 == 0 {
			h = HashMerkleBranches(&h, &siblings[i])
		} else {
			h = HashMerkleBranches(&siblings[i], &h)
		}
		index >>= 1
	}
	return h, nil
}

// HashMerkleBranches is the double-SHA256 of left || right.
func HashMerkleBranches(left, right *chainhash.Hash) chainhash.Hash {
	var b [chainhash.HashSize * 2]byte
	copy(b[:chainhash.HashSize], left[:])
	copy(b[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(b[:])
}
