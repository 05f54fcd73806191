package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/timetrackr/internal/model"
)

// PostgresDocumentStore はPostgreSQLのjsonbカラムにドキュメントを格納する
// DocumentStore実装。user_documentsテーブルを1ユーザー1行で使用する。
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore はPostgresDocumentStoreを生成する。
func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// Load は指定ユーザーのドキュメントを取得する。
// 行が存在しない場合は空のデフォルトドキュメントを返す。
func (s *PostgresDocumentStore) Load(ctx context.Context, username string) (*model.UserDocument, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM user_documents WHERE username = $1`,
		username,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return model.NewUserDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの取得に失敗しました: %w", err)
	}

	var doc model.UserDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ドキュメントの解析に失敗しました: %w", err)
	}
	return &doc, nil
}

// Save はドキュメント全体をUPSERTで無条件に上書きする。
func (s *PostgresDocumentStore) Save(ctx context.Context, username string, doc *model.UserDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("ドキュメントのシリアライズに失敗しました: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents (username, doc, schema_version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username)
		DO UPDATE SET doc = EXCLUDED.doc,
		              schema_version = EXCLUDED.schema_version,
		              updated_at = EXCLUDED.updated_at`,
		username, data, doc.SchemaVersion, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("ドキュメントの保存に失敗しました: %w", err)
	}
	return nil
}

// LoadAll は全ユーザーのドキュメントをユーザー名昇順で返す。
func (s *PostgresDocumentStore) LoadAll(ctx context.Context) ([]UserEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, doc FROM user_documents ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("ドキュメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []UserEntry
	for rows.Next() {
		var username string
		var raw []byte
		if err := rows.Scan(&username, &raw); err != nil {
			return nil, fmt.Errorf("行の読み取りに失敗しました: %w", err)
		}
		var doc model.UserDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("ドキュメントの解析に失敗しました: %w", err)
		}
		entries = append(entries, UserEntry{Username: username, Doc: &doc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ping はデータベースへの接続性を検証する。
func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
