// Package store persists risk-state snapshots to PostgreSQL so account
// exposure survives restarts and can be inspected out of process.
package store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"main/internal/risk"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// Option defines the PostgreSQL connection settings.
type Option struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// Store wraps the connection pool and the snapshot tables.
type Store struct {
	db *gorm.DB
}

// PositionRow is one persisted position entry. Decimals are stored as text to
// keep exactness independent of column types.
type PositionRow struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	TakenAt       time.Time `gorm:"index"`
	Symbol        string    `gorm:"index"`
	Size          string
	AvgEntryPrice string
	DailyLoss     string
}

func (PositionRow) TableName() string { return "risk_positions" }

// BalanceRow is one persisted balance entry.
type BalanceRow struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`
	TakenAt time.Time `gorm:"index"`
	Asset   string    `gorm:"index"`
	Total   string
	Used    string
}

func (BalanceRow) TableName() string { return "risk_balances" }

// Open connects and migrates the snapshot tables.
func Open(option Option) (*Store, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&PositionRow{}, &BalanceRow{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot writes every position and balance entry in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap risk.Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range snap.Positions {
			row := PositionRow{
				TakenAt:   snap.TakenAt,
				Symbol:    string(p.Symbol),
				Size:      p.Size.String(),
				DailyLoss: p.DailyLoss.String(),
			}
			if p.AvgEntryPrice != nil {
				row.AvgEntryPrice = p.AvgEntryPrice.String()
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		for _, b := range snap.Balances {
			row := BalanceRow{
				TakenAt: snap.TakenAt,
				Asset:   b.Asset,
				Total:   b.Total.String(),
				Used:    b.Used.String(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// LatestPositions returns the position rows of the most recent snapshot.
func (s *Store) LatestPositions(ctx context.Context) ([]PositionRow, error) {
	var latest time.Time
	err := s.db.WithContext(ctx).
		Model(&PositionRow{}).
		Select("max(taken_at)").
		Scan(&latest).Error
	if err != nil {
		return nil, err
	}

	var rows []PositionRow
	err = s.db.WithContext(ctx).
		Where("taken_at = ?", latest).
		Order("symbol").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (opt Option) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
