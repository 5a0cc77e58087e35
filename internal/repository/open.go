package repository

import (
	"context"
	"fmt"

	"github.com/katiamach/live-weather-tracker/internal/config"
	"github.com/katiamach/live-weather-tracker/internal/model"
)

// Store is a readings storage backend.
type Store interface {
	InsertReading(ctx context.Context, w *model.Weather) (*model.Reading, error)
	ListReadings(ctx context.Context, city string) ([]*model.Reading, error)
	DeleteReading(ctx context.Context, id int64) error
	ListCities(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLRepository)(nil)
	_ Store = (*MongoRepository)(nil)
)

// New opens the storage backend selected by cfg.DBDriver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres, config.DriverSQLite:
		return NewSQL(SQLOptions{
			Driver:       cfg.DBDriver,
			DSN:          cfg.DBDSN,
			Table:        cfg.DBTable,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
	case config.DriverMongo:
		return NewMongo(ctx, cfg.DBDSN, cfg.DBName)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.DBDriver)
	}
}
