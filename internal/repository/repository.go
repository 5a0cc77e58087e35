// Package repository provides methods to initialize db and perform weather readings queries.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// db drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/katiamach/live-weather-tracker/internal/logger"
	"github.com/katiamach/live-weather-tracker/internal/model"
)

const queryTimeout = 5 * time.Second

// DB errors.
var (
	ErrReadingNotFound = errors.New("weather data not found")
	ErrUnknownDriver   = errors.New("unknown database driver")
)

var schemas = map[string]string{
	"postgres": `CREATE TABLE IF NOT EXISTS %[1]s (
	id         SERIAL PRIMARY KEY,
	city       TEXT NOT NULL,
	humidity   INTEGER,
	cloud      INTEGER,
	wind_speed DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS %[1]s_city_idx ON %[1]s (city);`,
	"sqlite3": `CREATE TABLE IF NOT EXISTS %[1]s (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	city       TEXT NOT NULL,
	humidity   INTEGER,
	cloud      INTEGER,
	wind_speed REAL
);
CREATE INDEX IF NOT EXISTS %[1]s_city_idx ON %[1]s (city);`,
}

type queries struct {
	insert     string
	list       string
	listByCity string
	delete     string
	cities     string
}

func newQueries(table string) queries {
	columns := "id, city, COALESCE(humidity, 0), COALESCE(cloud, 0), COALESCE(wind_speed, 0)"

	return queries{
		insert:     fmt.Sprintf("INSERT INTO %s (city, humidity, cloud, wind_speed) VALUES ($1, $2, $3, $4) RETURNING id", table),
		list:       fmt.Sprintf("SELECT %s FROM %s ORDER BY id DESC", columns, table),
		listByCity: fmt.Sprintf("SELECT %s FROM %s WHERE city = $1 ORDER BY id DESC", columns, table),
		delete:     fmt.Sprintf("DELETE FROM %s WHERE id = $1 RETURNING id", table),
		cities:     fmt.Sprintf("SELECT DISTINCT city FROM %s ORDER BY city ASC", table),
	}
}

// SQLOptions configures SQL repository connection.
type SQLOptions struct {
	Driver       string
	DSN          string
	Table        string
	MaxOpenConns int
	MaxIdleConns int
}

// SQLRepository stores readings in a relational table.
type SQLRepository struct {
	db *sql.DB
	q  queries
}

// NewSQL opens connection pool and creates repository on top of it.
func NewSQL(opts SQLOptions) (*SQLRepository, error) {
	if _, ok := schemas[opts.Driver]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if opts.Driver == "sqlite3" && isMemoryDSN(opts.DSN) {
		// every connection would open its own empty database, the only one must stay open
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns >= 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = db.PingContext(ctxWithTimeout)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	repo, err := NewSQLWithDB(ctxWithTimeout, db, opts.Driver, opts.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// NewSQLWithDB creates repository from an already opened db, creating the table if needed.
func NewSQLWithDB(ctx context.Context, db *sql.DB, driver, table string) (*SQLRepository, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(schema, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", table, err)
	}

	return &SQLRepository{
		db: db,
		q:  newQueries(table),
	}, nil
}

// Close closes db connection pool.
func (r *SQLRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}

	return nil
}

// Ping checks db connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.db.PingContext(ctxWithTimeout)
}

// InsertReading stores weather and returns it with the assigned id.
func (r *SQLRepository) InsertReading(ctx context.Context, w *model.Weather) (*model.Reading, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctxWithTimeout, r.q.insert, w.City, w.Humidity, w.Cloud, w.WindSpeed).Scan(&id)
	if err != nil {
		return nil, err
	}

	return model.NewReading(id, w), nil
}

// ListReadings gets readings newest first. Empty city means all cities.
func (r *SQLRepository) ListReadings(ctx context.Context, city string) ([]*model.Reading, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args := r.q.list, []interface{}{}
	if city != "" {
		query, args = r.q.listByCity, []interface{}{city}
	}

	rows, err := r.db.QueryContext(ctxWithTimeout, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error(fmt.Errorf("failed to close readings rows: %w", err))
		}
	}()

	readings := make([]*model.Reading, 0)
	for rows.Next() {
		rd := model.Reading{}
		err := rows.Scan(&rd.ID, &rd.City, &rd.Humidity, &rd.Cloud, &rd.WindSpeed)
		if err != nil {
			return nil, err
		}

		readings = append(readings, &rd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return readings, nil
}

// DeleteReading deletes reading by id.
func (r *SQLRepository) DeleteReading(ctx context.Context, id int64) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var deletedID int64
	err := r.db.QueryRowContext(ctxWithTimeout, r.q.delete, id).Scan(&deletedID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReadingNotFound
	}
	if err != nil {
		return err
	}

	return nil
}

// ListCities gets distinct city names in ascending order.
func (r *SQLRepository) ListCities(ctx context.Context) ([]string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctxWithTimeout, r.q.cities)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error(fmt.Errorf("failed to close cities rows: %w", err))
		}
	}()

	cities := make([]string, 0)
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}

		cities = append(cities, city)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cities, nil
}
