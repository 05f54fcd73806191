package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/timetrackr/internal/model"
)

// loginKeyPrefix はログインセッション格納キーのプレフィックス。
const loginKeyPrefix = "timetrackr:login:"

// RedisSessionStore はRedisをバックエンドとするSessionStore実装。
// セッションをJSONとして格納し、有効期限はRedisのTTLに委譲する。
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore はRedisSessionStoreを生成する。
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) key(sessionID string) string {
	return loginKeyPrefix + sessionID
}

// Create はセッションをExpiresAtまでのTTL付きで保存する。
func (s *RedisSessionStore) Create(ctx context.Context, session *model.LoginSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("セッションのシリアライズに失敗しました: %w", err)
	}

	ttl := time.Until(time.UnixMilli(session.ExpiresAt))
	if ttl <= 0 {
		return fmt.Errorf("セッションの有効期限が過去です")
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return nil
}

// Find はセッションIDで検索する。キーが存在しない場合は(nil, nil)を返す。
func (s *RedisSessionStore) Find(ctx context.Context, sessionID string) (*model.LoginSession, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	var session model.LoginSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("セッションの解析に失敗しました: %w", err)
	}
	return &session, nil
}

// Delete はセッションを破棄する。存在しないIDは無視する。
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}
