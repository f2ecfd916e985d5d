package btcsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/teleport-bridge/btcrelay"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/database"
)

type mockSource struct {
	mu      sync.Mutex
	headers []*wire.BlockHeader
	err     error
}

func newMockSource(n int) *mockSource {
	m := &mockSource{}
	m.extend(n)
	return m
}

func (m *mockSource) extend(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		var prev chainhash.Hash
		if len(m.headers) > 0 {
			prev = m.headers[len(m.headers)-1].BlockHash()
		}
		m.headers = append(m.headers, btcrelay.NewSimulatedHeader(prev, btcrelay.RandTxIDs(1)[0], time.Now()))
	}
}

// fork replaces the chain from height on with n new blocks.
func (m *mockSource) fork(height int, n int) {
	m.mu.Lock()
	m.headers = m.headers[:height]
	m.mu.Unlock()
	m.extend(n)
}

func (m *mockSource) GetLatestBlockHeight() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return uint64(len(m.headers) - 1), nil
}

func (m *mockSource) GetBlockHeader(height uint64) (*wire.BlockHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if height >= uint64(len(m.headers)) {
		return nil, errors.New("block height out of range")
	}
	return m.headers[height], nil
}

func newRelay(t *testing.T) *btcrelay.Relay {
	r, err := btcrelay.New(database.NewMemoryDB(), &btcrelay.Config{MinConfirmations: 1})
	require.NoError(t, err)
	return r
}

func assertRelayed(t *testing.T, r *btcrelay.Relay, src *mockSource, from, to uint64) {
	for h := from; h <= to; h++ {
		stored, ok, err := r.Header(h)
		require.NoError(t, err)
		require.True(t, ok, h)
		assert.Equal(t, src.headers[h].BlockHash(), stored.BlockHash())
	}
}

func TestScan(t *testing.T) {
	src := newMockSource(21)
	r := newRelay(t)
	s := NewHeaderSyncer(r, src, &Config{StartHeight: 10, Offset: 2})

	n, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	tip, ok := r.Tip()
	require.True(t, ok)
	assert.Equal(t, uint64(18), tip)
	assertRelayed(t, r, src, 10, 18)
	_, ok, err = r.Header(9)
	require.NoError(t, err)
	assert.False(t, ok)

	// nothing new
	n, err = s.Scan()
	require.NoError(t, err)
	assert.Zero(t, n)

	src.extend(5)
	n, err = s.Scan()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	tip, _ = r.Tip()
	assert.Equal(t, uint64(23), tip)
	assertRelayed(t, r, src, 19, 23)
}

func TestScanShortChain(t *testing.T) {
	src := newMockSource(3)
	r := newRelay(t)

	s := NewHeaderSyncer(r, src, &Config{Offset: 5})
	n, err := s.Scan()
	require.NoError(t, err)
	assert.Zero(t, n)

	s = NewHeaderSyncer(r, src, &Config{StartHeight: 10})
	n, err = s.Scan()
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok := r.Tip()
	assert.False(t, ok)
}

func TestScanBatchSize(t *testing.T) {
	src := newMockSource(10)
	r := newRelay(t)
	s := NewHeaderSyncer(r, src, &Config{BatchSize: 4})

	for _, want := range []int{4, 4, 2, 0} {
		n, err := s.Scan()
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assertRelayed(t, r, src, 0, 9)
}

func TestScanSourceError(t *testing.T) {
	src := newMockSource(5)
	src.err = errors.New("connection refused")
	r := newRelay(t)
	s := NewHeaderSyncer(r, src, &Config{})

	_, err := s.Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	_, ok := r.Tip()
	assert.False(t, ok)
}

func TestScanFork(t *testing.T) {
	src := newMockSource(10)
	r := newRelay(t)
	s := NewHeaderSyncer(r, src, &Config{})

	_, err := s.Scan()
	require.NoError(t, err)

	src.fork(8, 4)
	_, err = s.Scan()
	assert.ErrorIs(t, err, ErrForkDetected)
	assert.ErrorIs(t, err, common.ErrInvalidState)
	tip, _ := r.Tip()
	assert.Equal(t, uint64(9), tip)

	// the loop gives up on a fork
	done := make(chan struct{})
	go func() {
		s.ScanLoop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan loop did not stop on fork")
	}
}

func TestScanLoop(t *testing.T) {
	src := newMockSource(6)
	r := newRelay(t)

	relayed := make(chan uint64, 16)
	s := NewHeaderSyncer(r, src, &Config{
		Interval:  10 * time.Millisecond,
		OnRelayed: func(tip uint64) { relayed <- tip },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.ScanLoop(ctx)
		close(done)
	}()

	select {
	case tip := <-relayed:
		assert.Equal(t, uint64(5), tip)
	case <-time.After(5 * time.Second):
		t.Fatal("no headers relayed")
	}

	src.extend(2)
	select {
	case tip := <-relayed:
		assert.Equal(t, uint64(7), tip)
	case <-time.After(5 * time.Second):
		t.Fatal("no headers relayed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan loop did not stop")
	}
}
