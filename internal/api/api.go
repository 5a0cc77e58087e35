package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/katiamach/live-weather-tracker/internal/broadcast"
	"github.com/katiamach/live-weather-tracker/internal/config"
	"github.com/katiamach/live-weather-tracker/internal/logger"
	"github.com/katiamach/live-weather-tracker/internal/poller"
	"github.com/katiamach/live-weather-tracker/internal/repository"
	"github.com/katiamach/live-weather-tracker/internal/service"
	"github.com/katiamach/live-weather-tracker/internal/transport/rest/handler"
	"github.com/katiamach/live-weather-tracker/internal/weatherapi"
)

const (
	shutdownTimeout = 10 * time.Second
	mqttDialTimeout = 5 * time.Second
)

// NewRouter registers weather API routes. ws serves the push channel.
func NewRouter(server *handler.WeatherServer, ws http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/weather", server.GetWeatherHandler).Methods("GET")
	r.HandleFunc("/add", server.AddWeatherHandler).Methods("POST")
	r.HandleFunc("/delete/{id:[0-9]+}", server.DeleteWeatherHandler).Methods("DELETE")
	r.HandleFunc("/api/cities", server.GetCitiesHandler).Methods("GET")
	r.HandleFunc("/healthz", server.HealthHandler).Methods("GET")
	r.Handle("/ws", ws).Methods("GET")

	return r
}

// RunAPI runs weather tracker API, poller and push channel until ctx is done.
func RunAPI(ctx context.Context, cfg *config.Config) error {
	store, err := repository.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore(store)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	hub := broadcast.NewHub(cfg.CORSOrigin)
	go hub.Run(hubCtx)

	sinks := broadcast.Multi{hub}
	if mqttSink := connectMQTT(ctx, cfg); mqttSink != nil {
		defer mqttSink.Disconnect()
		sinks = append(sinks, mqttSink)
	}

	svc := service.New(store, newFetcher(cfg), sinks, cfg.Cities)

	p := poller.New(svc, cfg.PollInterval)
	if err := p.Start(); err != nil {
		return err
	}
	defer p.Stop()

	accessLog := logger.Writer()
	defer accessLog.Close()

	r := NewRouter(handler.NewWeatherServer(svc), hub)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.CombinedLoggingHandler(accessLog, handlers.CORS(setupCorsOptions(cfg.CORSOrigin)...)(r)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Starting weather tracker api at port %s", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down weather tracker api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// websocket connections are hijacked, Shutdown does not wait for them
	stopHub()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	return nil
}

// PollOnce runs a single fetch-insert-broadcast cycle and returns number of stored readings.
func PollOnce(ctx context.Context, cfg *config.Config) (int, error) {
	store, err := repository.New(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore(store)

	var sink service.Broadcaster = broadcast.Discard{}
	if mqttSink := connectMQTT(ctx, cfg); mqttSink != nil {
		defer mqttSink.Disconnect()
		sink = mqttSink
	}

	svc := service.New(store, newFetcher(cfg), sink, cfg.Cities)

	readings, err := svc.FetchAndStore(ctx)

	return len(readings), err
}

func newFetcher(cfg *config.Config) *weatherapi.Client {
	return weatherapi.New(weatherapi.Options{
		BaseURL:   cfg.WeatherAPIURL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
	})
}

// connectMQTT returns nil when no broker is configured.
func connectMQTT(ctx context.Context, cfg *config.Config) *broadcast.MQTTPublisher {
	if cfg.MQTTBroker == "" {
		return nil
	}

	p := broadcast.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)

	dialCtx, cancel := context.WithTimeout(ctx, mqttDialTimeout)
	defer cancel()

	if err := p.Connect(dialCtx); err != nil {
		logger.Warn(fmt.Errorf("mqtt broker %s not reachable yet, events are dropped until it is: %w", cfg.MQTTBroker, err))
	}

	return p
}

func closeStore(store repository.Store) {
	if err := store.Close(); err != nil {
		logger.Error(fmt.Errorf("failed to close storage: %w", err))
	}
}
