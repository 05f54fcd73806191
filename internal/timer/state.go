// Package timer はタイマー制御のドメインロジックを提供する。
//
// 単一アクティブタイマー不変条件の強制、開始/停止/手動追記の状態遷移、
// 停止イベントを正しいオープンセッションへ対応付ける照合処理を担う。
package timer

import (
	"context"
	"sync"

	"github.com/hitoshi/timetrackr/internal/model"
)

// UserState は1ユーザー分のセッションコンテキスト。
// 全てのタイマー操作と永続化呼び出しへ明示的に渡される（アンビエントなグローバルは持たない）。
//
// muがユーザー単位の変更を直列化する: 1つの変更（開始・停止・手動追記・ノート編集）は
// 次のユーザー起点の変更が始まる前に完了する。
type UserState struct {
	Username string

	mu  sync.Mutex
	doc *model.UserDocument
}

// Snapshot はドキュメントのディープコピーを返す。
// 読み取り専用エンドポイント（loadData、エクスポート）で使用する。
func (u *UserState) Snapshot() *model.UserDocument {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.doc.Clone()
}

// DocumentLoader はRegistryが必要とするロードインターフェース。
// store.DocumentStoreの部分集合として定義する。
type DocumentLoader interface {
	Load(ctx context.Context, username string) (*model.UserDocument, error)
}

// Registry はユーザーごとのUserStateを管理する。
// 初回アクセス時にストアからドキュメントを遅延ロードし、以降は
// インメモリ状態を正として扱う（永続化は非同期のベストエフォート）。
type Registry struct {
	loader DocumentLoader

	mu     sync.Mutex
	states map[string]*UserState
}

// NewRegistry はRegistryを生成する。
func NewRegistry(loader DocumentLoader) *Registry {
	return &Registry{
		loader: loader,
		states: make(map[string]*UserState),
	}
}

// Acquire は指定ユーザーのUserStateを返す。
// 未ロードの場合はストアからロードする。ドキュメントが存在しないユーザーには
// 空のデフォルトドキュメントが作られる（遅延生成）。
// ロード失敗はPersistenceFailureとしてユーザーへ通知される（ロード経路のみ）。
func (r *Registry) Acquire(ctx context.Context, username string) (*UserState, error) {
	r.mu.Lock()
	if st, ok := r.states[username]; ok {
		r.mu.Unlock()
		return st, nil
	}
	r.mu.Unlock()

	// ロードはレジストリのロック外で行う（遅いストアで全ユーザーを塞がない）
	doc, err := r.loader.Load(ctx, username)
	if err != nil {
		return nil, model.NewPersistenceFailureError(err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// 同時ロードに負けた場合は先着を使う
	if st, ok := r.states[username]; ok {
		return st, nil
	}
	st := &UserState{Username: username, doc: doc}
	r.states[username] = st
	return st, nil
}
