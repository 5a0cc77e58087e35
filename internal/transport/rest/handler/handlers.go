package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/katiamach/live-weather-tracker/internal/config"
	"github.com/katiamach/live-weather-tracker/internal/logger"
	"github.com/katiamach/live-weather-tracker/internal/model"
	"github.com/katiamach/live-weather-tracker/internal/repository"
)

//go:generate mockgen -source=handlers.go -destination=mock/mock.go WeatherService

// WeatherService provides weather service methods.
type WeatherService interface {
	AddReadings(ctx context.Context) (*model.Reading, error)
	ListReadings(ctx context.Context, city string) ([]*model.Reading, error)
	DeleteReading(ctx context.Context, id int64) error
	ListCities(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// WeatherServer is a server for weather readings.
type WeatherServer struct {
	service WeatherService
}

// NewWeatherServer creates new WeatherServer.
func NewWeatherServer(service WeatherService) *WeatherServer {
	return &WeatherServer{service}
}

type addResponse struct {
	Message string         `json:"message"`
	ID      int64          `json:"id"`
	Reading *model.Reading `json:"reading"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// GetWeatherHandler returns stored readings, newest first, optionally for one city.
func (s *WeatherServer) GetWeatherHandler(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city != "" {
		city = config.NormalizeCity(city)
	}

	readings, err := s.service.ListReadings(r.Context(), city)
	if err != nil {
		logger.Error(fmt.Errorf("failed to get weather data: %v", err))
		respondErr(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, readings)
}

// AddWeatherHandler fetches and stores weather for every configured city.
func (s *WeatherServer) AddWeatherHandler(w http.ResponseWriter, r *http.Request) {
	reading, err := s.service.AddReadings(r.Context())
	if err != nil {
		logger.Error(fmt.Errorf("failed to add weather data: %v", err))
		respondErr(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, addResponse{
		Message: "Weather data added",
		ID:      reading.ID,
		Reading: reading,
	})
}

// DeleteWeatherHandler deletes reading by id.
func (s *WeatherServer) DeleteWeatherHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondErr(w, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return
	}

	err = s.service.DeleteReading(r.Context(), id)
	if errors.Is(err, repository.ErrReadingNotFound) {
		respondErr(w, http.StatusNotFound, repository.ErrReadingNotFound)
		return
	}
	if err != nil {
		logger.Error(fmt.Errorf("failed to delete weather data: %v", err))
		respondErr(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, messageResponse{Message: "Weather data deleted"})
}

// GetCitiesHandler returns distinct stored cities.
func (s *WeatherServer) GetCitiesHandler(w http.ResponseWriter, r *http.Request) {
	cities, err := s.service.ListCities(r.Context())
	if err != nil {
		logger.Error(fmt.Errorf("failed to get cities: %v", err))
		respondErr(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, cities)
}

// HealthHandler reports whether storage is reachable.
func (s *WeatherServer) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		logger.Warn(fmt.Errorf("health check failed: %w", err))
		respondErr(w, http.StatusServiceUnavailable, err)
		return
	}

	respond(w, http.StatusOK, healthResponse{Status: "ok"})
}
