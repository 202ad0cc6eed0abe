package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddleware_RecordsRoute(t *testing.T) {
	m, reader := newTestMetrics(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /progress/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Middleware(m)(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/u1", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}

	rm := collect(t, reader)
	found := findMetric(rm, "buzzle.http.request.duration")
	if found == nil {
		t.Fatal("http histogram not found")
	}
	hist := found.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	attrs := hist.DataPoints[0].Attributes
	if v, _ := attrs.Value("route"); v.AsString() != "GET /progress/{userId}" {
		t.Errorf("route = %q", v.AsString())
	}
	if v, _ := attrs.Value("status"); v.AsString() != "418" {
		t.Errorf("status = %q", v.AsString())
	}
}

func TestMiddleware_NilMetrics(t *testing.T) {
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantDebug bool
		wantJSON  bool
	}{
		{"json info", "info", "json", false, true},
		{"text debug", "debug", "text", true, false},
		{"unknown defaults", "loud", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level, tt.format)

			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			logger.Info("hello", "k", "v")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("output %q json = %v, want %v", buf.String(), got, tt.wantJSON)
			}
		})
	}
}

func TestProvider_Handler(t *testing.T) {
	p, err := InitProvider()
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordAnswer(context.Background(), true)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "buzzle_answers") {
		t.Errorf("metrics output missing buzzle_answers:\n%s", rec.Body.String())
	}
}
