package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/timetrackr/internal/model"
)

// docKeyPrefix はドキュメント格納キーのプレフィックス。
const docKeyPrefix = "timetrackr:doc:"

// RedisDocumentStore はRedisをKVストアとして使うDocumentStore実装。
// 1ユーザー1キーで、ドキュメント全体をJSONとしてSET/GETする。
type RedisDocumentStore struct {
	client *redis.Client
}

// NewRedisDocumentStore はRedisDocumentStoreを生成する。
func NewRedisDocumentStore(client *redis.Client) *RedisDocumentStore {
	return &RedisDocumentStore{client: client}
}

func (s *RedisDocumentStore) key(username string) string {
	return docKeyPrefix + username
}

// Load は指定ユーザーのドキュメントを取得する。
// キーが存在しない場合は空のデフォルトドキュメントを返す。
func (s *RedisDocumentStore) Load(ctx context.Context, username string) (*model.UserDocument, error) {
	val, err := s.client.Get(ctx, s.key(username)).Result()
	if err == redis.Nil {
		return model.NewUserDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの取得に失敗しました: %w", err)
	}

	var doc model.UserDocument
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("ドキュメントの解析に失敗しました: %w", err)
	}
	return &doc, nil
}

// Save はドキュメント全体を無条件に上書きする。
func (s *RedisDocumentStore) Save(ctx context.Context, username string, doc *model.UserDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("ドキュメントのシリアライズに失敗しました: %w", err)
	}
	if err := s.client.Set(ctx, s.key(username), data, 0).Err(); err != nil {
		return fmt.Errorf("ドキュメントの保存に失敗しました: %w", err)
	}
	return nil
}

// LoadAll は全ユーザーのドキュメントをユーザー名昇順で返す。
// SCANでキー空間を走査するため、結果は呼び出し時点のスナップショットとは限らない。
func (s *RedisDocumentStore) LoadAll(ctx context.Context) ([]UserEntry, error) {
	var usernames []string
	iter := s.client.Scan(ctx, 0, docKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		usernames = append(usernames, strings.TrimPrefix(iter.Val(), docKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("キー走査に失敗しました: %w", err)
	}
	sort.Strings(usernames)

	entries := make([]UserEntry, 0, len(usernames))
	for _, username := range usernames {
		doc, err := s.Load(ctx, username)
		if err != nil {
			return nil, err
		}
		entries = append(entries, UserEntry{Username: username, Doc: doc})
	}
	return entries, nil
}

// Ping はRedisへの接続性を検証する。
func (s *RedisDocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
