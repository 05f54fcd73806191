package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/timetrackr/internal/model"
)

// MemoryDocumentStore はインメモリのDocumentStore実装。
// 開発用バックエンドおよびテストで使用する。
// 格納時・取得時にディープコピーするため、呼び出し側の変更は格納値に波及しない。
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*model.UserDocument
}

// NewMemoryDocumentStore はMemoryDocumentStoreを生成する。
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[string]*model.UserDocument),
	}
}

// Load は指定ユーザーのドキュメントを取得する。
// 存在しない場合は空のデフォルトドキュメントを返す。
func (s *MemoryDocumentStore) Load(ctx context.Context, username string) (*model.UserDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[username]
	if !ok {
		return model.NewUserDocument(), nil
	}
	return doc.Clone(), nil
}

// Save はドキュメント全体を無条件に上書きする。
func (s *MemoryDocumentStore) Save(ctx context.Context, username string, doc *model.UserDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[username] = doc.Clone()
	return nil
}

// LoadAll は全ユーザーのドキュメントをユーザー名昇順で返す。
func (s *MemoryDocumentStore) LoadAll(ctx context.Context) ([]UserEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usernames := make([]string, 0, len(s.docs))
	for u := range s.docs {
		usernames = append(usernames, u)
	}
	sort.Strings(usernames)

	entries := make([]UserEntry, 0, len(usernames))
	for _, u := range usernames {
		entries = append(entries, UserEntry{Username: u, Doc: s.docs[u].Clone()})
	}
	return entries, nil
}

// Ping は常に成功する。
func (s *MemoryDocumentStore) Ping(ctx context.Context) error {
	return nil
}

// MemorySessionLogStore はインメモリのSessionLogStore実装。テスト用。
type MemorySessionLogStore struct {
	mu      sync.Mutex
	records map[string][]model.SessionRecord
}

// NewMemorySessionLogStore はMemorySessionLogStoreを生成する。
func NewMemorySessionLogStore() *MemorySessionLogStore {
	return &MemorySessionLogStore{
		records: make(map[string][]model.SessionRecord),
	}
}

// Append はリスト末尾へレコードを追記する。
func (s *MemorySessionLogStore) Append(ctx context.Context, username string, rec model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[username] = append(s.records[username], rec)
	return nil
}

// List はユーザーのレコードを追記順で返す。
func (s *MemorySessionLogStore) List(ctx context.Context, username string) ([]model.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SessionRecord, len(s.records[username]))
	copy(out, s.records[username])
	return out, nil
}
