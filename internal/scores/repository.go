package scores

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(dsn string) (*GormRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open scores db: %w", err)
	}
	if err := db.AutoMigrate(&Score{}); err != nil {
		return nil, fmt.Errorf("migrate scores: %w", err)
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Save(ctx context.Context, s Score) error {
	return r.db.WithContext(ctx).Create(&s).Error
}

func (r *GormRepository) Top(ctx context.Context, limit int) ([]Score, error) {
	var out []Score
	err := r.db.WithContext(ctx).Order("score DESC").Order("timestamp ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLRepository stores scores in the sqlite room database. It expects the
// scores table from the store migrations.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Save(ctx context.Context, s Score) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scores (id, player_name, score, timestamp) VALUES (?, ?, ?, ?)`,
		s.ID, s.PlayerName, s.Score, s.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

func (r *SQLRepository) Top(ctx context.Context, limit int) ([]Score, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_name, score, timestamp FROM scores ORDER BY score DESC, timestamp ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	var out []Score
	for rows.Next() {
		var (
			s  Score
			ts int64
		)
		if err := rows.Scan(&s.ID, &s.PlayerName, &s.Score, &ts); err != nil {
			return nil, err
		}
		s.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// MemoryRepository keeps scores in process; Top is a scan, sort and truncate.
type MemoryRepository struct {
	mu     sync.RWMutex
	scores []Score
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Save(ctx context.Context, s Score) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, s)
	return nil
}

func (r *MemoryRepository) Top(ctx context.Context, limit int) ([]Score, error) {
	r.mu.RLock()
	out := append([]Score{}, r.scores...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
