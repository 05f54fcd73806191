// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/timetrackr/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにログインセッションを格納するためのキー。
var sessionContextKey = contextKey("login_session")

// SessionFinder はセッションの検索に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionFinder interface {
	GetSession(ctx context.Context, sessionID string) (*model.LoginSession, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みセッション（ユーザー名・表示名・ロール）をリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteUnauthorizedResponse(w)
				return
			}

			// 2. セッションの有効性を検証
			session, err := sessionFinder.GetSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteUnauthorizedResponse(w)
				return
			}
			if session == nil {
				WriteUnauthorizedResponse(w)
				return
			}

			// 3. 認証済みセッションをコンテキストに注入
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminOnlyMiddleware は管理者ロールのみを通過させるミドルウェアを返す。
// セッションミドルウェアの後に配置する。一般ユーザーには403 Forbiddenを返す。
func NewAdminOnlyMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromContext(r.Context())
			if err != nil {
				WriteUnauthorizedResponse(w)
				return
			}
			if session.Role != model.RoleAdmin {
				slog.Warn("admin endpoint denied",
					slog.String("username", session.Username),
					slog.String("path", r.URL.Path),
				)
				WriteForbiddenResponse(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストからログインセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.LoginSession, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.LoginSession)
	if !ok || session == nil {
		return nil, fmt.Errorf("login session not found in context")
	}
	return session, nil
}

// UsernameFromContext はリクエストコンテキストからユーザー名を取得する。
func UsernameFromContext(ctx context.Context) (string, error) {
	session, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	if session.Username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return session.Username, nil
}

// ContextWithSession はコンテキストにログインセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.LoginSession) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
