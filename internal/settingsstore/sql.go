package settingsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// settingsRecord is one row of plugin_settings.
type settingsRecord struct {
	PluginID  string    `gorm:"column:plugin_id;primaryKey;size:64"`
	Data      string    `gorm:"column:data;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (settingsRecord) TableName() string { return "plugin_settings" }

// SQLStore keeps settings as JSON text in a single table.
type SQLStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Dialector returns the GORM dialector for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// OpenSQL connects, applies the pool settings and migrates the table.
func OpenSQL(ctx context.Context, cfg Config, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.WithContext(ctx).AutoMigrate(&settingsRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate plugin_settings: %w", err)
	}

	logger.Info("settings store opened",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return NewSQLStore(db, logger), nil
}

// NewSQLStore wraps an already migrated connection.
func NewSQLStore(db *gorm.DB, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, logger: logger.With(zap.String("component", "settings_sql_store"))}
}

func (s *SQLStore) Load(ctx context.Context, pluginID string, v any) (bool, error) {
	if err := checkID(pluginID); err != nil {
		return false, err
	}
	var rec settingsRecord
	err := s.db.WithContext(ctx).Where("plugin_id = ?", pluginID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query settings: %w", err)
	}
	if err := json.Unmarshal([]byte(rec.Data), v); err != nil {
		return false, fmt.Errorf("decode settings of %s: %w", pluginID, err)
	}
	return true, nil
}

func (s *SQLStore) Save(ctx context.Context, pluginID string, v any) error {
	if err := checkID(pluginID); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	rec := settingsRecord{PluginID: pluginID, Data: string(data), UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plugin_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	s.logger.Debug("settings saved", zap.String("plugin", pluginID))
	return nil
}

// PoolStats reports open and idle connections of the underlying pool.
func (s *SQLStore) PoolStats() (open, idle int) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return 0, 0
	}
	st := sqlDB.Stats()
	return st.OpenConnections, st.Idle
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
