// Package auth はログインセッションの管理を提供する。
//
// 資格情報の検証（パスワード・外部IdP等）は外部コラボレータの責務であり、
// 本パッケージはセッションの発行・検索・破棄のみを扱う。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/timetrackr/internal/model"
)

// SessionStore はログインセッションの永続化インターフェース。
type SessionStore interface {
	// Create はセッションを有効期限付きで保存する。
	Create(ctx context.Context, session *model.LoginSession) error
	// Find はセッションIDで検索する。存在しない場合は(nil, nil)を返す。
	Find(ctx context.Context, sessionID string) (*model.LoginSession, error)
	// Delete はセッションを破棄する。存在しないIDは無視する。
	Delete(ctx context.Context, sessionID string) error
}

// Verifier は資格情報の検証インターフェース。
// 検証に成功した場合、ユーザー名・表示名・ロールを返す。
// 実装は外部コラボレータが提供する。
type Verifier interface {
	Verify(ctx context.Context, username, credential string) (displayName, role string, err error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はログインセッションに関するビジネスロジックを提供する。
type Service struct {
	store  SessionStore
	config ServiceConfig
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(store SessionStore, config ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		config: config,
		logger: logger,
	}
}

// CreateSession は検証済みユーザーへセッションを発行する。
func (s *Service) CreateSession(ctx context.Context, username, displayName, role string) (*model.LoginSession, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	if role == "" {
		role = model.RoleUser
	}

	session := &model.LoginSession{
		ID:          sessionID,
		Username:    username,
		DisplayName: displayName,
		Role:        role,
		ExpiresAt:   time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second).UnixMilli(),
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("セッションを発行",
		slog.String("username", username),
		slog.String("role", role),
	)
	return session, nil
}

// GetSession はセッションIDから有効なセッションを取得する。
// 存在しない、または期限切れの場合は(nil, nil)を返す。
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.LoginSession, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.store.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if session.ExpiresAt <= time.Now().UnixMilli() {
		// 期限切れは遅延破棄する
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("期限切れセッションの破棄に失敗", "error", err)
		}
		return nil, nil
	}

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.logger.Info("ログアウト", slog.String("session_id", sessionID))
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
