package main

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/handlers"
)

func TestReadyHandlerGatesUntilInstalled(t *testing.T) {
	gate := &readyHandler{}

	w := httptest.NewRecorder()
	gate.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("healthz: want 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	gate.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/menus/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("before install: want 503, got %d", w.Code)
	}

	gate.install(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w = httptest.NewRecorder()
	gate.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/menus/", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("after install: want 418, got %d", w.Code)
	}
}

func TestRouterNotFoundAndCorrelationId(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(config.GetLogger(), handlers.Deps{})

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("x-correlation-id", "cid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
	if got := w.Header().Get("x-correlation-id"); got != "cid-1" {
		t.Fatalf("correlation id not echoed: %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("correlation id should be generated")
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example ")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("blank input should give nil")
	}
}

func TestRunReturnsStartupErrors(t *testing.T) {
	t.Setenv("API_PORT", "0")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("DB_CONNECT_ATTEMPTS", "1")

	err := run()
	if err == nil || !strings.Contains(err.Error(), "connect database") {
		t.Fatalf("want a connect database error, got %v", err)
	}
}
