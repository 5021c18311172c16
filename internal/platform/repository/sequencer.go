package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sequencer hands out monotonically increasing integers per key.
// Next reserves n contiguous values and returns the first one.
type Sequencer interface {
	Next(ctx context.Context, key string, n int64) (int64, error)
}

// Counter is the row backing DBSequencer.
type Counter struct {
	Name string `gorm:"primaryKey;size:128"`
	Seq  int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM.
func (Counter) TableName() string { return "counters" }

// DBSequencer reserves values with an atomic upsert on the counters table.
type DBSequencer struct {
	db *gorm.DB
}

var _ Sequencer = (*DBSequencer)(nil)

// NewDBSequencer creates a DBSequencer. The counters table must exist
// (AutoMigrate(&Counter{}) or the goose migrations).
func NewDBSequencer(db *gorm.DB) *DBSequencer {
	return &DBSequencer{db: db}
}

// Next increments the counter for key by n and returns the first reserved value.
func (s *DBSequencer) Next(ctx context.Context, key string, n int64) (int64, error) {
	if n < 1 {
		return 0, fmt.Errorf("sequence reservation must be positive, got %d", n)
	}

	var c Counter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{"seq": gorm.Expr("counters.seq + ?", n)}),
		}).Create(&Counter{Name: key, Seq: n}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", key).First(&c).Error
	})
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %q: %w", key, err)
	}
	return c.Seq - n + 1, nil
}

// Seeder reports the highest value already used for key.
type Seeder func(ctx context.Context, key string) (int64, error)

// MaxSeqSeeder reads MAX(seq) from the collection registered under key,
// deleted rows included.
func MaxSeqSeeder(reg *Registry) Seeder {
	return func(ctx context.Context, key string) (int64, error) {
		b, ok := reg.Binding(key)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrNoBinding, key)
		}
		var high int64
		row := b.DB.WithContext(ctx).Model(b.Model).Select("COALESCE(MAX(" + ColumnSeq + "), 0)").Row()
		if err := row.Scan(&high); err != nil {
			return 0, fmt.Errorf("seed sequence %q: %w", key, err)
		}
		return high, nil
	}
}

// RedisSequencer reserves values with INCRBY. Without a seeder a lost
// counter restarts at 1; with one it resumes above the stored maximum.
type RedisSequencer struct {
	client *redis.Client
	prefix string
	seed   Seeder
}

var _ Sequencer = (*RedisSequencer)(nil)

// NewRedisSequencer creates a RedisSequencer. If prefix is empty, it uses "seq".
func NewRedisSequencer(client *redis.Client, prefix string) *RedisSequencer {
	if prefix == "" {
		prefix = "seq"
	}
	return &RedisSequencer{client: client, prefix: prefix}
}

// WithSeeder sets the seeder consulted when a counter key is missing.
func (s *RedisSequencer) WithSeeder(seed Seeder) *RedisSequencer {
	s.seed = seed
	return s
}

// ensureSeeded initialises a missing counter from the seeder. SETNX keeps
// concurrent seeders from lowering a counter another caller already set.
func (s *RedisSequencer) ensureSeeded(ctx context.Context, redisKey, key string) error {
	n, err := s.client.Exists(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("check sequence %q: %w", key, err)
	}
	if n > 0 {
		return nil
	}
	floor, err := s.seed(ctx, key)
	if err != nil {
		return err
	}
	if err := s.client.SetNX(ctx, redisKey, floor, 0).Err(); err != nil {
		return fmt.Errorf("seed sequence %q: %w", key, err)
	}
	return nil
}

// Next increments the counter for key by n and returns the first reserved value.
func (s *RedisSequencer) Next(ctx context.Context, key string, n int64) (int64, error) {
	if n < 1 {
		return 0, fmt.Errorf("sequence reservation must be positive, got %d", n)
	}
	if s.client == nil {
		return 0, errors.New("redis sequencer has no client")
	}
	redisKey := s.prefix + ":" + key
	if s.seed != nil {
		if err := s.ensureSeeded(ctx, redisKey, key); err != nil {
			return 0, err
		}
	}
	last, err := s.client.IncrBy(ctx, redisKey, n).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %q: %w", key, err)
	}
	return last - n + 1, nil
}
