package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tj/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_KEY", "secret")

	cfg, err := Load()
	assert.Nil(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.weatherapi.com/v1", cfg.WeatherAPIURL)
	assert.Equal(t, []string{"Shah Alam, MY", "Kuala Lumpur, MY", "Singapore, SG"}, cfg.Cities)
	assert.Equal(t, 600*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)
	assert.Equal(t, "weather", cfg.DBTable)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Contains(t, cfg.DBDSN, "postgres://")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("PORT", "5000")
	t.Setenv("CITIES", "london, gb; paris,fr")
	t.Setenv("POLL_INTERVAL", "1m")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_TABLE", "weather3")
	t.Setenv("MQTT_TOPIC_PREFIX", "/live/weather/")

	cfg, err := Load()
	assert.Nil(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, []string{"London, GB", "Paris, FR"}, cfg.Cities)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "weather3", cfg.DBTable)
	assert.Equal(t, "live/weather", cfg.MQTTTopicPrefix)
	assert.Contains(t, cfg.DBDSN, "file:")
}

func TestLoadBareSeconds(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("POLL_INTERVAL", "600")
	t.Setenv("HTTP_TIMEOUT", " 10 ")

	cfg, err := Load()
	assert.Nil(t, err)

	assert.Equal(t, 600*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	err := os.WriteFile(path, []byte("API_KEY=from-file\nCITIES=Oslo, NO\n"), 0o600)
	assert.Nil(t, err)

	t.Cleanup(func() {
		os.Unsetenv("API_KEY")
		os.Unsetenv("CITIES")
	})

	cfg, err := Load(path)
	assert.Nil(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, []string{"Oslo, NO"}, cfg.Cities)
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing api key",
			env:  map[string]string{"API_KEY": ""},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"API_KEY": "k", "DB_DRIVER": "oracle"},
		},
		{
			name: "unsafe table name",
			env:  map[string]string{"API_KEY": "k", "DB_TABLE": "weather; DROP TABLE weather"},
		},
		{
			name: "no cities",
			env:  map[string]string{"API_KEY": "k", "CITIES": " ; "},
		},
		{
			name: "idle above open conns",
			env:  map[string]string{"API_KEY": "k", "DB_MAX_OPEN_CONNS": "2", "DB_MAX_IDLE_CONNS": "3"},
		},
		{
			name: "zero interval",
			env:  map[string]string{"API_KEY": "k", "POLL_INTERVAL": "0s"},
		},
		{
			name: "sub-second interval",
			env:  map[string]string{"API_KEY": "k", "POLL_INTERVAL": "600ns"},
		},
		{
			name: "sub-second http timeout",
			env:  map[string]string{"API_KEY": "k", "HTTP_TIMEOUT": "500ms"},
		},
		{
			name: "malformed interval",
			env:  map[string]string{"API_KEY": "k", "POLL_INTERVAL": "soon"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.NotNil(t, err)
		})
	}
}

func TestNormalizeCity(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"Shah Alam, MY", "Shah Alam, MY"},
		{"  kuala   lumpur ,my ", "Kuala Lumpur, MY"},
		{"singapore", "Singapore"},
		{"Tokyo,", "Tokyo"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.out, NormalizeCity(tc.in))
	}
}
