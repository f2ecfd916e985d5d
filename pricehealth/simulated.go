package pricehealth

import (
	"math/big"
	"sync"
	"time"
)

// SimulatedFeed is a settable price feed.
type SimulatedFeed struct {
	mu        sync.RWMutex
	price     *big.Int
	decimals  uint8
	updatedAt time.Time
	err       error
}

func NewSimulatedFeed(price *big.Int, decimals uint8, updatedAt time.Time) *SimulatedFeed {
	return &SimulatedFeed{price: price, decimals: decimals, updatedAt: updatedAt}
}

func (f *SimulatedFeed) Decimals() uint8 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.decimals
}

func (f *SimulatedFeed) LatestRoundData() (*big.Int, time.Time, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, time.Time{}, f.err
	}
	return new(big.Int).Set(f.price), f.updatedAt, nil
}

func (f *SimulatedFeed) SetPrice(price *big.Int, updatedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.updatedAt = updatedAt
}

func (f *SimulatedFeed) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
