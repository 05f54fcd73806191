package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/timetrackr/internal/admin"
	"github.com/hitoshi/timetrackr/internal/middleware"
	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/store"
	"github.com/hitoshi/timetrackr/internal/timer"
)

// noopSaver はセーブ要求を無視するDocumentPersister。
type noopSaver struct{}

func (noopSaver) Enqueue(username string, doc *model.UserDocument) {}

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	sessions map[string]*model.LoginSession
}

func (m *mockSessionFinder) GetSession(ctx context.Context, sessionID string) (*model.LoginSession, error) {
	return m.sessions[sessionID], nil
}

// newTestRouter は実サービスとインメモリストアで構成したルーターを生成するヘルパー。
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	docStore := store.NewMemoryDocumentStore()
	sessionLog := store.NewMemorySessionLogStore()
	registry := timer.NewRegistry(docStore)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	timerService := timer.NewService(noopSaver{}, nil, logger, nil)
	adminService := admin.NewService(docStore, logger)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	finder := &mockSessionFinder{
		sessions: map[string]*model.LoginSession{
			"user-session": {
				ID:          "user-session",
				Username:    "taro",
				DisplayName: "太郎",
				Role:        model.RoleUser,
				ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
			},
			"admin-session": {
				ID:          "admin-session",
				Username:    "kanri",
				DisplayName: "管理者",
				Role:        model.RoleAdmin,
				ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
			},
		},
	}

	return NewRouter(&RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            logger,
		States:            registry,
		TimerService:      timerService,
		DataService:       timerService,
		SessionService:    timerService,
		SessionLog:        sessionLog,
		AdminService:      adminService,
		AuthService:       &mockAuthService{},
		AuthConfig:        AuthHandlerConfig{},
		StorePinger:       docStore,
		Gatherer:          prometheus.NewRegistry(),
	})
}

func withCookie(req *http.Request, sessionID string) *http.Request {
	req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})
	return req
}

// withCSRF はダブルサブミットCookie方式のトークンをリクエストに付与するヘルパー。
func withCSRF(req *http.Request) *http.Request {
	const token = "test-csrf-token"
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
	req.Header.Set("X-CSRF-Token", token)
	return req
}

func TestRouter_UnauthenticatedAPIRejected(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/api/loadData", "/api/timer", "/api/export", "/api/whoami"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestRouter_TimerFlow(t *testing.T) {
	router := newTestRouter(t)

	// 1. カテゴリを登録する（saveData経由の全体上書き）
	saveBody := `{"displayName": "太郎", "categories": [{"id": "cat-1", "name": "開発", "sessions": []}], "active": null}`
	req := withCSRF(withCookie(httptest.NewRequest(http.MethodPost, "/api/saveData", bytes.NewBufferString(saveBody)), "user-session"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("saveData: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// 2. タイマー開始
	req = withCSRF(withCookie(httptest.NewRequest(http.MethodPost, "/api/timer/start", bytes.NewBufferString(`{"categoryId": "cat-1"}`)), "user-session"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	// 3. 二重開始は拒否される
	req = withCSRF(withCookie(httptest.NewRequest(http.MethodPost, "/api/timer/start", bytes.NewBufferString(`{"categoryId": "cat-1"}`)), "user-session"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("double start: status = %d, want %d", w.Code, http.StatusConflict)
	}

	// 4. ステータスは計測中を返す
	req = withCookie(httptest.NewRequest(http.MethodGet, "/api/timer", nil), "user-session")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var status timerStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Active == nil || status.Active.CategoryID != "cat-1" {
		t.Fatalf("status.active = %+v, want cat-1", status.Active)
	}

	// 5. 停止
	req = withCSRF(withCookie(httptest.NewRequest(http.MethodPost, "/api/timer/stop", bytes.NewBufferString(`{"note": "作業メモ"}`)), "user-session"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// 6. エクスポートに確定セッションが含まれる
	req = withCookie(httptest.NewRequest(http.MethodGet, "/api/export", nil), "user-session")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "開発") {
		t.Errorf("export body = %q, want 開発を含む", w.Body.String())
	}
}

func TestRouter_AdminRoleGate(t *testing.T) {
	router := newTestRouter(t)

	// 一般ユーザーは403
	req := withCookie(httptest.NewRequest(http.MethodGet, "/api/admin", nil), "user-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("user role: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// 管理者は200
	req = withCookie(httptest.NewRequest(http.MethodGet, "/api/admin", nil), "admin-session")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("admin role: status = %d, want %d", w.Code, http.StatusOK)
	}

	// 管理者エクスポートも同様
	req = withCookie(httptest.NewRequest(http.MethodGet, "/api/admin/export", nil), "user-session")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("user role export: status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_EdgeEndpointsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	// Cookieなしで追記できる
	body := `{"username": "taro", "id": "rec-1", "category": "開発", "durationMin": 25}`
	req := httptest.NewRequest(http.MethodPost, "/api/saveSession", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("saveSession: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// Cookieなしで取得できる
	req = httptest.NewRequest(http.MethodGet, "/api/getSessions?username=taro", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("getSessions: status = %d, want %d", w.Code, http.StatusOK)
	}
	var records []model.SessionRecord
	if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestRouter_CSRFTokenRequired(t *testing.T) {
	router := newTestRouter(t)

	// トークンなしの状態変更リクエストは403
	req := withCookie(httptest.NewRequest(http.MethodPost, "/api/timer/start", bytes.NewBufferString(`{"categoryId": "cat-1"}`)), "user-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("missing token: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// トークン取得エンドポイントは認証不要で200
	req = httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/api/csrf-token: status = %d, want %d", w.Code, http.StatusOK)
	}
	var tokenResp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&tokenResp); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if tokenResp["token"] == "" {
		t.Error("token should not be empty")
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("/health: status = %d, want %d", w.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("/metrics: status = %d, want %d", w.Code, http.StatusOK)
	}
}
