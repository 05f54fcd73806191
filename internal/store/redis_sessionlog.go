package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/timetrackr/internal/model"
)

// sessionLogKeyPrefix は追記型ストレージのキープレフィックス。
// エッジファンクション版と同じ `sessions:<username>` レイアウトを使用する。
const sessionLogKeyPrefix = "sessions:"

// RedisSessionLogStore はユーザーごとのリストへレコードを追記するSessionLogStore実装。
// 同一IDの二重追記は重複レコードになる（契約どおり重複排除しない）。
type RedisSessionLogStore struct {
	client *redis.Client
}

// NewRedisSessionLogStore はRedisSessionLogStoreを生成する。
func NewRedisSessionLogStore(client *redis.Client) *RedisSessionLogStore {
	return &RedisSessionLogStore{client: client}
}

func (s *RedisSessionLogStore) key(username string) string {
	return sessionLogKeyPrefix + username
}

// Append はリスト末尾へレコードを追記する。
func (s *RedisSessionLogStore) Append(ctx context.Context, username string, rec model.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("レコードのシリアライズに失敗しました: %w", err)
	}
	if err := s.client.RPush(ctx, s.key(username), data).Err(); err != nil {
		return fmt.Errorf("レコードの追記に失敗しました: %w", err)
	}
	return nil
}

// List はユーザーのレコードを追記順で返す。キーが存在しない場合は空を返す。
func (s *RedisSessionLogStore) List(ctx context.Context, username string) ([]model.SessionRecord, error) {
	vals, err := s.client.LRange(ctx, s.key(username), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("レコードの取得に失敗しました: %w", err)
	}

	records := make([]model.SessionRecord, 0, len(vals))
	for _, v := range vals {
		var rec model.SessionRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("レコードの解析に失敗しました: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
