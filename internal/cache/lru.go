package cache

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
)

// LRU is a bounded in-process cache with per-entry expiry.
type LRU struct {
	lru *expirable.LRU[string, inference.Prediction]
}

// NewLRU creates an LRU holding at most size entries. A ttl of zero disables expiry.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{lru: expirable.NewLRU[string, inference.Prediction](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key string) (inference.Prediction, bool, error) {
	pred, ok := c.lru.Get(key)
	if !ok {
		return inference.Prediction{}, false, nil
	}
	pred.Probabilities = slices.Clone(pred.Probabilities)
	return pred, true, nil
}

func (c *LRU) Set(_ context.Context, key string, pred inference.Prediction) error {
	pred.Probabilities = slices.Clone(pred.Probabilities)
	c.lru.Add(key, pred)
	return nil
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.lru.Len()
}

func (c *LRU) Close() error {
	c.lru.Purge()
	return nil
}

var _ Cache = (*LRU)(nil)
