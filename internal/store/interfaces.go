// Package store はユーザードキュメントの永続化インターフェースと実装を提供する。
//
// 2つのストレージ形状を同一の契約の背後に持つ:
//   - DocumentStore: ユーザーごとの全ドキュメントを無条件に上書きする（last-writer-wins）
//   - SessionLogStore: `sessions:<username>` キーのリストへ個別レコードを追記する
//
// どちらを使うかは外部のストレージコラボレータ（設定）が選択する。
package store

import (
	"context"

	"github.com/hitoshi/timetrackr/internal/model"
)

// DocumentStore はユーザードキュメント全体の永続化インターフェース。
type DocumentStore interface {
	// Load は指定ユーザーのドキュメント全体を取得する。
	// ドキュメントが存在しない場合はエラーではなく、空のデフォルトドキュメントを返す。
	Load(ctx context.Context, username string) (*model.UserDocument, error)

	// Save はリモートドキュメント全体を無条件に上書きする。
	// バージョンチェックも部分更新も行わない（last-writer-wins）。
	Save(ctx context.Context, username string, doc *model.UserDocument) error

	// LoadAll は全ユーザーのドキュメントをユーザー名昇順で返す。
	// 管理者集計ビューで使用する。
	LoadAll(ctx context.Context) ([]UserEntry, error)

	// Ping はストアへの接続性を検証する。
	Ping(ctx context.Context) error
}

// SessionLogStore は追記型ストレージのインターフェース。
// 同一セッションIDで2回追記すると重複レコードになる（重複排除はしない）。
type SessionLogStore interface {
	// Append はユーザーのリスト末尾にレコードを追記する。
	Append(ctx context.Context, username string, rec model.SessionRecord) error

	// List はユーザーのレコードを追記順で返す。存在しない場合は空を返す。
	List(ctx context.Context, username string) ([]model.SessionRecord, error)
}

// UserEntry はLoadAllの1件分（ユーザー名とドキュメント）を表す。
type UserEntry struct {
	Username string
	Doc      *model.UserDocument
}
