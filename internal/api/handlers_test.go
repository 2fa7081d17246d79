// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/brevis/internal/auth"
	"github.com/tomtom215/brevis/internal/cache"
	"github.com/tomtom215/brevis/internal/config"
	"github.com/tomtom215/brevis/internal/database"
	"github.com/tomtom215/brevis/internal/models"
	"github.com/tomtom215/brevis/internal/shortener"
)

// envelope mirrors the response wrapper for assertions.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:               "127.0.0.1",
			Port:               8421,
			BaseURL:            "http://short.test",
			CORSAllowedOrigins: []string{"*"},
			// Rate limits off: these tests hammer endpoints in loops.
			RedirectRatePerMinute: 0,
			APIRatePerMinute:      0,
		},
		Database: config.DatabaseConfig{
			Path:         ":memory:",
			MaxMemory:    "256MB",
			Threads:      2,
			QueryTimeout: 10 * time.Second,
		},
		Shortener: config.ShortenerConfig{CodeLength: 7, MaxCollisionRetries: 5},
		Cache:     config.CacheConfig{Capacity: 128, TTL: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (http.Handler, *database.DB) {
	t.Helper()

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	links := shortener.New(db, cache.NewLinkCache(cfg.Cache.Capacity, cfg.Cache.TTL), shortener.Config{
		CodeLength:          cfg.Shortener.CodeLength,
		MaxCollisionRetries: cfg.Shortener.MaxCollisionRetries,
	})

	var (
		jwtMgr    *auth.JWTManager
		basicAuth *auth.BasicAuthenticator
	)
	if cfg.AuthEnabled() {
		jwtMgr, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			t.Fatalf("jwt manager: %v", err)
		}
		basicAuth = auth.NewBasicAuthenticator(&cfg.Security)
	}

	h := NewHandler(cfg, links, db, nil, nil, nil, jwtMgr, basicAuth, nil)
	return NewRouter(h), db
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var rdr *strings.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	} else {
		rdr = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response: %v\nbody: %s", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func shortenLink(t *testing.T, router http.Handler, url, customCode string) string {
	t.Helper()

	body := `{"url":"` + url + `"`
	if customCode != "" {
		body += `,"custom_code":"` + customCode + `"`
	}
	body += `}`

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/shorten", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("shorten %q: status = %d, body %s", url, rec.Code, rec.Body.String())
	}
	var data struct {
		Link     models.Link `json:"link"`
		ShortURL string      `json:"short_url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode shorten data: %v", err)
	}
	return data.Link.ShortCode
}

func TestShortenAndRedirect(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	code := shortenLink(t, router, "https://example.com/landing", "")
	if len(code) != 7 {
		t.Errorf("generated code length = %d, want 7", len(code))
	}

	rec, _ := doJSON(t, router, http.MethodGet, "/"+code, "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("redirect status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.com/landing" {
		t.Errorf("Location = %q", loc)
	}
}

func TestShortenCustomCode(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	code := shortenLink(t, router, "https://example.com/promo", "summer-sale")
	if code != "summer-sale" {
		t.Fatalf("code = %q, want summer-sale", code)
	}

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/links/summer-sale", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get link status = %d", rec.Code)
	}
	var link models.Link
	if err := json.Unmarshal(env.Data, &link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	if link.OriginalURL != "https://example.com/promo" {
		t.Errorf("original url = %q", link.OriginalURL)
	}

	base, _ := doJSON(t, router, http.MethodPost, "/api/v1/shorten",
		`{"url":"https://example.com/other","custom_code":"summer-sale"}`, nil)
	if base.Code != http.StatusConflict {
		t.Errorf("duplicate code status = %d, want %d", base.Code, http.StatusConflict)
	}
}

func TestShortenValidation(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	tests := []struct {
		name string
		body string
		want int
		code string
	}{
		{"missing url", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad scheme", `{"url":"ftp://example.com/file"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not json", `{{{{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"short custom code", `{"url":"https://example.com","custom_code":"ab"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"reserved custom code", `{"url":"https://example.com","custom_code":"admin"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doJSON(t, router, http.MethodPost, "/api/v1/shorten", tt.body, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestRedirectNotFound(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	rec, env := doJSON(t, router, http.MethodGet, "/nope404x", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestUpdateLinkDeactivate(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())
	code := shortenLink(t, router, "https://example.com/gone", "")

	rec, env := doJSON(t, router, http.MethodPatch, "/api/v1/links/"+code, `{"active":false}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	var link models.Link
	if err := json.Unmarshal(env.Data, &link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	if link.Active {
		t.Error("link still active after deactivation")
	}

	if rec, _ := doJSON(t, router, http.MethodGet, "/"+code, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("deactivated redirect status = %d, want 404", rec.Code)
	}

	// Reactivate and confirm the redirect returns.
	if rec, _ := doJSON(t, router, http.MethodPatch, "/api/v1/links/"+code, `{"active":true}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("reactivate status = %d", rec.Code)
	}
	if rec, _ := doJSON(t, router, http.MethodGet, "/"+code, "", nil); rec.Code != http.StatusFound {
		t.Errorf("reactivated redirect status = %d, want 302", rec.Code)
	}
}

func TestUpdateLinkValidation(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())
	code := shortenLink(t, router, "https://example.com/x", "")

	rec, _ := doJSON(t, router, http.MethodPatch, "/api/v1/links/"+code, `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing active: status = %d, want 400", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodPatch, "/api/v1/links/missing99", `{"active":false}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown link: status = %d, want 404", rec.Code)
	}
}

func TestListLinksPagination(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())
	for i := 0; i < 5; i++ {
		shortenLink(t, router, "https://example.com/page", "")
	}

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/links?limit=2&offset=0", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Links []models.Link `json:"links"`
		Page  models.Page   `json:"page"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(data.Links) != 2 {
		t.Errorf("links = %d, want 2", len(data.Links))
	}
	if data.Page.Total != 5 {
		t.Errorf("total = %d, want 5", data.Page.Total)
	}
	if data.Page.Limit != 2 || data.Page.Offset != 0 {
		t.Errorf("page = %+v", data.Page)
	}
}

func TestAnalytics(t *testing.T) {
	router, db := newTestServer(t, newTestConfig())
	code := shortenLink(t, router, "https://example.com/tracked", "")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		event := models.NewClickEvent(code, "test-agent", "", "10.0.0.1", models.ClickSourceDirect)
		if _, err := db.RecordClick(ctx, event); err != nil {
			t.Fatalf("record click: %v", err)
		}
	}

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/analytics/"+code, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var stats models.LinkStats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalClicks != 3 {
		t.Errorf("total clicks = %d, want 3", stats.TotalClicks)
	}
	if len(stats.ClickHistory) != 3 {
		t.Errorf("history = %d entries, want 3", len(stats.ClickHistory))
	}
	if stats.LastClickAt == nil {
		t.Error("last click at is nil")
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/analytics/unknown9", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown link analytics status = %d, want 404", rec.Code)
	}
}

func TestReconcileEndpoints(t *testing.T) {
	router, db := newTestServer(t, newTestConfig())
	code := shortenLink(t, router, "https://example.com/audit", "")

	if _, err := db.RecordClick(context.Background(), models.NewClickEvent(code, "ua", "", "10.0.0.2", models.ClickSourceDirect)); err != nil {
		t.Fatalf("record click: %v", err)
	}

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/admin/reconcile/"+code, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.ReconcileResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Drift != 0 {
		t.Errorf("drift = %d, want 0", result.Drift)
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/admin/reconcile?repair=false", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile all status = %d", rec.Code)
	}
	var all struct {
		Checked int `json:"checked"`
	}
	if err := json.Unmarshal(env.Data, &all); err != nil {
		t.Fatalf("decode reconcile all: %v", err)
	}
	if all.Checked != 1 {
		t.Errorf("checked = %d, want 1", all.Checked)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}

	if rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/health/live", "", nil); rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d", rec.Code)
	}
	if rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readiness status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	rec, _ := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestAuthGating(t *testing.T) {
	cfg := newTestConfig()
	cfg.Security = config.SecurityConfig{
		JWTSecret:     strings.Repeat("s", 32),
		TokenTTL:      time.Hour,
		AdminUsername: "admin",
	}
	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cfg.Security.AdminPasswordHash = hash

	router, _ := newTestServer(t, cfg)

	// Management endpoints reject anonymous callers.
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/shorten", `{"url":"https://example.com"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous shorten status = %d, want 401", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error = %+v, want UNAUTHORIZED", env.Error)
	}

	// Wrong password.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"wrong"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}

	// Valid login issues a usable token.
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"hunter2hunter2"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	if err := json.Unmarshal(env.Data, &tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if tok.Token == "" || tok.ExpiresIn != 3600 {
		t.Fatalf("token response = %+v", tok)
	}

	hdr := http.Header{"Authorization": []string{"Bearer " + tok.Token}}
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/shorten", `{"url":"https://example.com"}`, hdr)
	if rec.Code != http.StatusCreated {
		t.Fatalf("authenticated shorten status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Admin endpoints accept the admin token.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/admin/reconcile", "", hdr)
	if rec.Code != http.StatusOK {
		t.Errorf("admin reconcile status = %d, want 200", rec.Code)
	}

	// The redirect stays public.
	recCreate, envCreate := doJSON(t, router, http.MethodPost, "/api/v1/shorten", `{"url":"https://example.com/open","custom_code":"public1"}`, hdr)
	if recCreate.Code != http.StatusCreated {
		t.Fatalf("shorten status = %d, body %s", recCreate.Code, envCreate.Error)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/public1", "", nil)
	if rec.Code != http.StatusFound {
		t.Errorf("public redirect status = %d, want 302", rec.Code)
	}
}

func TestAdminRequiresAdminRole(t *testing.T) {
	cfg := newTestConfig()
	cfg.Security = config.SecurityConfig{
		JWTSecret: strings.Repeat("k", 32),
		TokenTTL:  time.Hour,
	}
	router, _ := newTestServer(t, cfg)

	mgr, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	userTok, err := mgr.Generate("alice", auth.RoleUser)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	hdr := http.Header{"Authorization": []string{"Bearer " + userTok}}
	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/shorten", `{"url":"https://example.com"}`, hdr)
	if rec.Code != http.StatusCreated {
		t.Fatalf("user shorten status = %d", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/admin/reconcile", "", hdr)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user reconcile status = %d, want 403", rec.Code)
	}
}

func TestLoginNotConfigured(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", `{"username":"a","password":"b"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("login status = %d, want 404", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/exchange", `{"credential":"x"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("exchange status = %d, want 404", rec.Code)
	}
}

func TestLiveFeedDisabled(t *testing.T) {
	router, _ := newTestServer(t, newTestConfig())

	rec, _ := doJSON(t, router, http.MethodGet, "/api/v1/ws", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("ws status = %d, want 404", rec.Code)
	}
}
