package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/timetrackr/internal/model"
)

// MemorySessionStore はインメモリのSessionStore実装。
// 開発・テスト用途。有効期限の判定はサービス層で行われるため、
// ここでは単純なマップとして保持する。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.LoginSession
}

// NewMemorySessionStore はMemorySessionStoreを生成する。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*model.LoginSession)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *model.LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemorySessionStore) Find(ctx context.Context, sessionID string) (*model.LoginSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
