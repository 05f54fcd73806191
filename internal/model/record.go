package model

// SessionRecord は追記型ストレージに格納される個別セッションレコードを表す。
// エッジファンクション互換の形式で、`sessions:<username>` キーのリストに追記される。
// Timestampは追記時点のサーバー時刻（エポックミリ秒）。
type SessionRecord struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	DurationMin int    `json:"durationMin"`
	Note        string `json:"note"`
	Timestamp   int64  `json:"timestamp"`
}

// LoginSession はユーザーのログインセッションを表す。
// 生成（資格情報の検証）は外部コラボレータの責務であり、
// 本サービスは検索・破棄のみを行う。
type LoginSession struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// ロール定義
const (
	// RoleUser は一般ユーザー。自身のドキュメントのみ操作できる。
	RoleUser = "user"
	// RoleAdmin は管理者。集計ビューと集計エクスポートにアクセスできる。
	RoleAdmin = "admin"
)
