package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/tj/assert"

	"github.com/katiamach/live-weather-tracker/internal/broadcast"
	"github.com/katiamach/live-weather-tracker/internal/model"
	"github.com/katiamach/live-weather-tracker/internal/repository"
	"github.com/katiamach/live-weather-tracker/internal/service"
	"github.com/katiamach/live-weather-tracker/internal/transport/rest/handler"
	"github.com/katiamach/live-weather-tracker/internal/weatherapi"
)

// fakeWeatherAPI answers current.json like weatherapi.com; unknown cities get 400.
func fakeWeatherAPI(t *testing.T) *httptest.Server {
	t.Helper()

	humidity := map[string]int{
		"Shah Alam, MY":    84,
		"Kuala Lumpur, MY": 79,
		"Singapore, SG":    70,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := humidity[r.URL.Query().Get("q")]
		if !ok || r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
			return
		}

		_, _ = fmt.Fprintf(w, `{"current":{"humidity":%d,"cloud":50,"wind_kph":10.8}}`, h)
	}))
	t.Cleanup(srv.Close)

	return srv
}

type testEnv struct {
	srv *httptest.Server
	ws  *websocket.Conn
}

func setup(t *testing.T, cities []string) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	assert.Nil(t, err)
	db.SetMaxOpenConns(1)

	store, err := repository.NewSQLWithDB(context.Background(), db, "sqlite3", "weather")
	assert.Nil(t, err)
	t.Cleanup(func() { _ = store.Close() })

	weather := fakeWeatherAPI(t)
	fetcher := weatherapi.New(weatherapi.Options{
		BaseURL:   weather.URL,
		APIKey:    "test-key",
		Timeout:   time.Second,
		RateLimit: 1000,
		RateBurst: 10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := broadcast.NewHub("*")
	go hub.Run(ctx)

	svc := service.New(store, fetcher, broadcast.Multi{hub}, cities)
	r := NewRouter(handler.NewWeatherServer(svc), hub)

	srv := httptest.NewServer(handlers.CORS(setupCorsOptions("*")...)(r))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	assert.Nil(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, hub.ClientCount())

	return &testEnv{srv: srv, ws: conn}
}

func (e *testEnv) do(t *testing.T, method, path string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	assert.Nil(t, err)

	resp, err := http.DefaultClient.Do(req)
	assert.Nil(t, err)
	defer resp.Body.Close()

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	assert.Nil(t, err)

	return resp.StatusCode, strings.TrimSpace(body.String())
}

type wsEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) nextEvent(t *testing.T) wsEvent {
	t.Helper()

	_ = e.ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev wsEvent
	assert.Nil(t, e.ws.ReadJSON(&ev))

	return ev
}

func TestWeatherAPI(t *testing.T) {
	env := setup(t, []string{"Shah Alam, MY", "Nowhere, XX", "Kuala Lumpur, MY", "Singapore, SG"})

	code, body := env.do(t, http.MethodGet, "/weather")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]", body)

	code, body = env.do(t, http.MethodPost, "/add")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"message":"Weather data added","id":3,"reading":{"id":3,"city":"Singapore, SG","humidity":70,"cloud":50,"wind_speed":10.8}}`, body)

	// one update per stored city, unknown city skipped
	for _, want := range []string{"Shah Alam, MY", "Kuala Lumpur, MY", "Singapore, SG"} {
		ev := env.nextEvent(t)
		assert.Equal(t, model.EventWeatherUpdate, ev.Name)

		var r model.Reading
		assert.Nil(t, json.Unmarshal(ev.Data, &r))
		assert.Equal(t, want, r.City)
	}

	var readings []*model.Reading
	code, body = env.do(t, http.MethodGet, "/weather")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, json.Unmarshal([]byte(body), &readings))
	assert.Len(t, readings, 3)
	assert.Equal(t, int64(3), readings[0].ID)
	assert.Equal(t, int64(1), readings[2].ID)

	code, body = env.do(t, http.MethodGet, "/weather?city=kuala%20lumpur,%20my")
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, json.Unmarshal([]byte(body), &readings))
	assert.Len(t, readings, 1)
	assert.Equal(t, int64(2), readings[0].ID)

	code, body = env.do(t, http.MethodGet, "/api/cities")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `["Kuala Lumpur, MY","Shah Alam, MY","Singapore, SG"]`, body)

	code, body = env.do(t, http.MethodDelete, "/delete/2")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"message":"Weather data deleted"}`, body)

	ev := env.nextEvent(t)
	assert.Equal(t, model.EventWeatherDelete, ev.Name)
	assert.Equal(t, `{"id":2}`, string(ev.Data))

	code, body = env.do(t, http.MethodDelete, "/delete/2")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, `{"code":404,"error":"weather data not found"}`, body)

	code, _ = env.do(t, http.MethodDelete, "/delete/abc")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodGet, "/add")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, body = env.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"status":"ok"}`, body)
}

func TestAddWithoutWeatherData(t *testing.T) {
	env := setup(t, []string{"Nowhere, XX"})

	code, body := env.do(t, http.MethodPost, "/add")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, `{"code":500,"error":"failed to fetch weather data"}`, body)

	code, body = env.do(t, http.MethodGet, "/weather")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]", body)
}

func TestCORSPreflight(t *testing.T) {
	env := setup(t, nil)

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/delete/1", nil)
	assert.Nil(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)

	resp, err := http.DefaultClient.Do(req)
	assert.Nil(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodDelete)
}
