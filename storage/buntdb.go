// Package storage persists completed trade records. Two implementations are
// provided: an embedded BuntDB key-value log and a SQL database via GORM.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/tidwall/buntdb"

	"github.com/quantfall/riskcore/core"
)

const (
	// DefaultIndexName orders trade retrieval by exit time.
	DefaultIndexName = "exit_index"
)

// BuntStorage implements core.TradeStorage using BuntDB.
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// Additional indexes to create beyond the default exit_index
	AdditionalIndexes map[string]string
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		AdditionalIndexes: make(map[string]string),
		SyncPolicy:        buntdb.Never,
	}
}

// NewFromMemory creates an in-memory trade log with default configuration.
func NewFromMemory() (core.TradeStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-based trade log with default configuration.
func NewFromFile(file string) (core.TradeStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a BuntDB trade log with the specified configuration.
func NewBuntStorage(sourceFile string, config BuntConfig) (core.TradeStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(DefaultIndexName, "*", buntdb.IndexJSON("exit_time")); err != nil {
		return nil, fmt.Errorf("failed to create default index: %w", err)
	}

	for name, pattern := range config.AdditionalIndexes {
		if err := db.CreateIndex(name, "*", buntdb.IndexJSON(pattern)); err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return &BuntStorage{db: db}, nil
}

// getID generates a unique ID for trade records
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// SaveTrade stores a completed trade record.
func (b *BuntStorage) SaveTrade(_ context.Context, trade *core.TradeRecord) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if trade.ID == 0 {
			trade.ID = b.getID()
		}

		content, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}

		key := strconv.FormatInt(trade.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store trade: %w", err)
		}

		return nil
	})
}

// Trades retrieves trade records matching every filter, ordered by exit time.
func (b *BuntStorage) Trades(_ context.Context, filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	trades := make([]*core.TradeRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var iterErr error
		err := tx.Ascend(DefaultIndexName, func(key, value string) bool {
			var trade core.TradeRecord
			if err := json.Unmarshal([]byte(value), &trade); err != nil {
				iterErr = fmt.Errorf("failed to unmarshal trade %s: %w", key, err)
				return false
			}

			for _, filter := range filters {
				if !filter(trade) {
					return true
				}
			}

			trades = append(trades, &trade)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over trades: %w", err)
		}
		return iterErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}

	return trades, nil
}

// Close releases the underlying database.
func (b *BuntStorage) Close() error {
	return b.db.Close()
}
