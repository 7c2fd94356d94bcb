package ledger

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"goalbot/internal/schema"
)

const (
	defaultStoreHost     = "localhost"
	defaultStorePort     = 5432
	defaultStoreDatabase = "goalbot"
	defaultStoreSSLMode  = "disable"
)

// StoreOption defines connection options for the trade database.
type StoreOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	ConnString string
}

// TradeRecord is the persisted form of a closed position.
type TradeRecord struct {
	ID          string `gorm:"primaryKey"`
	Strategy    string `gorm:"index"`
	Match       uint32 `gorm:"index"`
	MarketID    string
	Venue       uint16
	Side        string
	EntryPrice  float64
	SizeUSD     float64
	RealizedPnL float64
	CloseReason string
	OpenedAt    time.Time
	ClosedAt    time.Time `gorm:"index"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (TradeRecord) TableName() string { return "trades" }

// Store persists closed trades to PostgreSQL.
type Store struct {
	db *gorm.DB
}

// NewStore opens the trade database and migrates the trades table.
func NewStore(opt StoreOption) (*Store, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// SaveClosed inserts one closed position.
func (s *Store) SaveClosed(pos schema.Position) error {
	if s == nil || s.db == nil {
		return nil
	}
	record := TradeRecord{
		ID:          pos.ID,
		Strategy:    pos.Strategy.String(),
		Match:       uint32(pos.Match),
		MarketID:    pos.MarketID,
		Venue:       uint16(pos.Venue),
		Side:        pos.Side.String(),
		EntryPrice:  pos.EntryPrice,
		SizeUSD:     pos.SizeUSD,
		RealizedPnL: pos.RealizedPnL,
		CloseReason: pos.CloseReason.String(),
		OpenedAt:    time.Unix(0, pos.OpenedAt).UTC(),
		ClosedAt:    time.Unix(0, pos.ClosedAt).UTC(),
	}
	return s.db.Create(&record).Error
}

// RealizedSince sums realized P&L of trades closed at or after the cutoff,
// used to rebuild the daily total on restart.
func (s *Store) RealizedSince(cutoff time.Time) (float64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total float64
	err := s.db.Model(&TradeRecord{}).
		Where("closed_at >= ?", cutoff).
		Select("COALESCE(SUM(realized_pn_l), 0)").
		Scan(&total).Error
	return total, err
}

// Close releases the connection pool.
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

func (opt StoreOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultStoreHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultStorePort
	}
	database := opt.Database
	if database == "" {
		database = defaultStoreDatabase
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultStoreSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + database,
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}
