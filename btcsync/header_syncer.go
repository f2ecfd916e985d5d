/*
Package btcsync feeds the btc relay with the headers of a bitcoin node.

The syncer polls the node, waits until a block is Offset blocks deep and
then submits its header, in order, right after the relay tip.
*/
package btcsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/btcrelay"
	"github.com/TEENet-io/teleport-bridge/common"
)

const (
	DEFAULT_BATCH_SIZE = 100             // max headers per scan
	SCAN_INTERVAL      = 3 * time.Second // 3 seconds, then we scan again
)

// ErrForkDetected is returned when the relay tip is no longer on the node's
// best chain. The relay keeps a single chain, so syncing stops.
var ErrForkDetected = fmt.Errorf("%w: relay tip is not on the best chain", common.ErrInvalidState)

// HeaderSource is a view of a bitcoin node's best chain.
type HeaderSource interface {
	GetLatestBlockHeight() (uint64, error)
	GetBlockHeader(height uint64) (*wire.BlockHeader, error)
}

type Config struct {
	// StartHeight is the first height relayed into an empty relay.
	StartHeight uint64
	// Offset is the number of blocks on top of a header before it is relayed.
	Offset    uint64
	BatchSize uint64
	Interval  time.Duration
	// OnRelayed is called with the new tip after a scan submitted headers.
	OnRelayed func(tip uint64)
}

type HeaderSyncer struct {
	cfg    Config
	relay  *btcrelay.Relay
	source HeaderSource
}

func NewHeaderSyncer(relay *btcrelay.Relay, source HeaderSource, cfg *Config) *HeaderSyncer {
	c := *cfg
	if c.BatchSize == 0 {
		c.BatchSize = DEFAULT_BATCH_SIZE
	}
	if c.Interval == 0 {
		c.Interval = SCAN_INTERVAL
	}
	return &HeaderSyncer{cfg: c, relay: relay, source: source}
}

// Scan relays the headers between the relay tip and the deepest block
// with enough blocks on top. It returns the number of headers submitted.
func (s *HeaderSyncer) Scan() (int, error) {
	latest, err := s.source.GetLatestBlockHeight()
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block height: %w", err)
	}
	if latest < s.cfg.Offset {
		return 0, nil
	}
	target := latest - s.cfg.Offset

	next := s.cfg.StartHeight
	if tip, ok := s.relay.Tip(); ok {
		if err := s.checkTip(tip); err != nil {
			return 0, err
		}
		next = tip + 1
	}
	if next > target {
		return 0, nil
	}
	if target-next+1 > s.cfg.BatchSize {
		target = next + s.cfg.BatchSize - 1
	}

	logger.WithFields(logger.Fields{
		"latest": latest,
		"from":   next,
		"to":     target,
	}).Debug("syncing btc headers")

	n := 0
	for h := next; h <= target; h++ {
		header, err := s.source.GetBlockHeader(h)
		if err != nil {
			return n, fmt.Errorf("failed to get header at %d: %w", h, err)
		}
		if err := s.relay.SubmitHeader(h, header); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *HeaderSyncer) checkTip(tip uint64) error {
	stored, ok, err := s.relay.Header(tip)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	header, err := s.source.GetBlockHeader(tip)
	if err != nil {
		return fmt.Errorf("failed to get header at %d: %w", tip, err)
	}
	if header.BlockHash() != stored.BlockHash() {
		return fmt.Errorf("%w: height %d", ErrForkDetected, tip)
	}
	return nil
}

// ScanLoop scans every Interval until ctx is done or a fork is detected.
func (s *HeaderSyncer) ScanLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		n, err := s.Scan()
		if errors.Is(err, ErrForkDetected) {
			logger.WithError(err).Error("stop syncing btc headers")
			return
		}
		if err != nil {
			logger.Warnf("btc header ScanLoop error: %v", err)
		}
		if tip, ok := s.relay.Tip(); ok && n > 0 {
			logger.WithFields(logger.Fields{"headers": n, "tip": tip}).Info("btc headers relayed")
			if s.cfg.OnRelayed != nil {
				s.cfg.OnRelayed(tip)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
