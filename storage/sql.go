package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quantfall/riskcore/core"
)

// SQLStorage implements core.TradeStorage using a SQL database via GORM.
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite creates a SQLite-backed trade log.
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (core.TradeStorage, error) {
	return newFromSQL(sqlite.Open(dbPath), config, opts...)
}

func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (core.TradeStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err = db.AutoMigrate(&core.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// SaveTrade stores a completed trade record.
func (s *SQLStorage) SaveTrade(ctx context.Context, trade *core.TradeRecord) error {
	if result := s.db.WithContext(ctx).Create(trade); result.Error != nil {
		return fmt.Errorf("failed to create trade: %w", result.Error)
	}
	return nil
}

// Trades retrieves trade records matching every filter, ordered by exit time.
func (s *SQLStorage) Trades(ctx context.Context, filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	var trades []*core.TradeRecord
	result := s.db.WithContext(ctx).Order("exit_time").Find(&trades)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}

	if len(filters) > 0 {
		trades = lo.Filter(trades, func(trade *core.TradeRecord, _ int) bool {
			for _, filter := range filters {
				if !filter(*trade) {
					return false
				}
			}
			return true
		})
	}

	return trades, nil
}

// TradesWithQuery allows customized querying through GORM's query builder.
func (s *SQLStorage) TradesWithQuery(ctx context.Context, queryFn func(*gorm.DB) *gorm.DB) ([]*core.TradeRecord, error) {
	var trades []*core.TradeRecord
	result := queryFn(s.db.WithContext(ctx)).Find(&trades)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to execute query: %w", result.Error)
	}
	return trades, nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
