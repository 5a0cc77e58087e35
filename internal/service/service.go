package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/katiamach/live-weather-tracker/internal/logger"
	"github.com/katiamach/live-weather-tracker/internal/model"
)

// ErrNoWeatherData means no configured city returned weather data.
var ErrNoWeatherData = errors.New("failed to fetch weather data")

// Repository provides necessary repo methods.
type Repository interface {
	InsertReading(ctx context.Context, w *model.Weather) (*model.Reading, error)
	ListReadings(ctx context.Context, city string) ([]*model.Reading, error)
	DeleteReading(ctx context.Context, id int64) error
	ListCities(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Fetcher gets current weather for a city.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (*model.Weather, error)
}

// Broadcaster notifies listeners about changed readings.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// WeatherService provides weather service functionality.
type WeatherService struct {
	repo        Repository
	fetcher     Fetcher
	broadcaster Broadcaster
	cities      []string
}

// New creates new WeatherService.
func New(repo Repository, fetcher Fetcher, broadcaster Broadcaster, cities []string) *WeatherService {
	return &WeatherService{
		repo:        repo,
		fetcher:     fetcher,
		broadcaster: broadcaster,
		cities:      cities,
	}
}

// FetchAndStore fetches every configured city, stores and broadcasts each reading.
// Cities the weather API could not serve are skipped.
func (ws *WeatherService) FetchAndStore(ctx context.Context) ([]*model.Reading, error) {
	readings := make([]*model.Reading, 0, len(ws.cities))

	for _, city := range ws.cities {
		w, err := ws.fetcher.Fetch(ctx, city)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return readings, ctxErr
			}
			logger.WithFields(logger.Fields{"city": city}).Warn(fmt.Sprintf("skipping city: %v", err))
			continue
		}

		reading, err := ws.repo.InsertReading(ctx, w)
		if err != nil {
			return readings, fmt.Errorf("failed to insert weather data for %s: %w", city, err)
		}

		ws.broadcaster.Broadcast(model.EventWeatherUpdate, reading)
		readings = append(readings, reading)
	}

	return readings, nil
}

// AddReadings runs one fetch cycle and returns the last stored reading.
func (ws *WeatherService) AddReadings(ctx context.Context) (*model.Reading, error) {
	readings, err := ws.FetchAndStore(ctx)
	if err != nil {
		return nil, err
	}

	if len(readings) == 0 {
		return nil, ErrNoWeatherData
	}

	return readings[len(readings)-1], nil
}

// ListReadings returns stored readings, newest first. Empty city means all cities.
func (ws *WeatherService) ListReadings(ctx context.Context, city string) ([]*model.Reading, error) {
	readings, err := ws.repo.ListReadings(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("failed to list weather data: %w", err)
	}

	return readings, nil
}

// DeleteReading removes reading by id and notifies listeners.
func (ws *WeatherService) DeleteReading(ctx context.Context, id int64) error {
	err := ws.repo.DeleteReading(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete weather data: %w", err)
	}

	ws.broadcaster.Broadcast(model.EventWeatherDelete, model.DeletedReading{ID: id})

	return nil
}

// ListCities returns distinct stored cities in ascending order.
func (ws *WeatherService) ListCities(ctx context.Context) ([]string, error) {
	cities, err := ws.repo.ListCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}

	return cities, nil
}

// Ping checks the storage is reachable.
func (ws *WeatherService) Ping(ctx context.Context) error {
	return ws.repo.Ping(ctx)
}
