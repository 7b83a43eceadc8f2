package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"taskboard/internal/config"
)

func TestNewServesHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, store := range []config.StoreConfig{
		{Driver: config.DriverMemory},
		{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "app.sqlite3")},
	} {
		t.Run(store.Driver, func(t *testing.T) {
			var logs bytes.Buffer
			cfg := config.Config{Store: store, HTTP: config.HTTPConfig{CORSOrigins: "*"}}
			a, err := New(cfg, NewLogger(config.AppConfig{LogFormat: "json"}, &logs))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer a.Close(context.Background())

			w := httptest.NewRecorder()
			a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("health = %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["store"] != store.Driver {
				t.Errorf("store = %v", body["store"])
			}
			if !strings.Contains(logs.String(), `"msg":"handled"`) {
				t.Errorf("access log missing: %s", logs.String())
			}
		})
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.Config{Store: config.StoreConfig{Driver: "mongo"}}, NewLogger(config.AppConfig{}, io.Discard))
	if err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(config.AppConfig{LogLevel: "warn", Env: "test"}, &buf)
	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "env=test") {
		t.Errorf("output = %q", out)
	}
}
