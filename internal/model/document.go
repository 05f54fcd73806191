// Package model はドメインモデルを定義する。
package model

import "time"

// 現行のドキュメントスキーマバージョン。
// 旧クライアントが書いたドキュメントにはこのフィールドが存在しないため、
// ゼロ値（0）は「バージョン付与前」を意味する。
const CurrentSchemaVersion = 1

// Session は1回の計測区間（記録済みまたは計測中）を表す。
// StartとEndはエポックミリ秒。Endがnilの間はオープン状態。
// DurationMinは導出値であり、クローズ後にStart/Endと矛盾した値を持つことはない。
type Session struct {
	ID          string `json:"id"`
	Start       int64  `json:"start"`
	End         *int64 `json:"end"`
	DurationMin *int   `json:"durationMin"`
	Note        string `json:"note"`
}

// IsOpen はセッションが計測中（End未設定）かどうかを返す。
func (s *Session) IsOpen() bool {
	return s.End == nil
}

// Close はセッションをend（エポックミリ秒）で確定する。
// durationMin = max(1, round((end-start)/60000)) を設定する。
// クローズ済みセッションの再クローズは呼び出し側で防ぐこと。
func (s *Session) Close(end int64) {
	d := DurationMinutes(s.Start, end)
	s.End = &end
	s.DurationMin = &d
}

// DurationMinutes はエポックミリ秒の区間から分単位の長さを導出する。
// 四捨五入、最低1分。
func DurationMinutes(start, end int64) int {
	delta := end - start
	if delta < 0 {
		delta = 0
	}
	min := int((delta + 30_000) / 60_000)
	if min < 1 {
		min = 1
	}
	return min
}

// Category はセッションを所有する名前付きバケットを表す。
// Sessionsは挿入順（push順）であり、時刻順とは限らない。
type Category struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Sessions []*Session `json:"sessions"`
}

// FindSession はセッションIDで検索する。見つからない場合はnilを返す。
func (c *Category) FindSession(sessionID string) *Session {
	for _, s := range c.Sessions {
		if s.ID == sessionID {
			return s
		}
	}
	return nil
}

// OpenSessionCount はカテゴリ内のオープンセッション数を返す。
func (c *Category) OpenSessionCount() int {
	n := 0
	for _, s := range c.Sessions {
		if s.IsOpen() {
			n++
		}
	}
	return n
}

// ActiveTimer はユーザーごとに高々1つの計測中タイマーを表す。
// Startはエポックミリ秒。
type ActiveTimer struct {
	CategoryID string `json:"categoryId"`
	Start      int64  `json:"start"`
}

// Elapsed は壁時計時刻nowに対する経過時間を返す。
// 状態を変更しない純粋関数であり、表示側が任意の間隔で再計算する。
func (a *ActiveTimer) Elapsed(now time.Time) time.Duration {
	ms := now.UnixMilli() - a.Start
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// UserDocument は1ユーザー分の永続化単位（カテゴリ群＋アクティブタイマー）を表す。
// ロードもセーブもこのドキュメント全体を原子的に扱う。
type UserDocument struct {
	DisplayName   string      `json:"displayName,omitempty"`
	Categories    []*Category `json:"categories"`
	Active        *ActiveTimer `json:"active"`
	SchemaVersion int         `json:"schemaVersion,omitempty"`
}

// NewUserDocument は空のUserDocumentを生成する。
// リモートにドキュメントが存在しないユーザーの初回ロードで使用する。
func NewUserDocument() *UserDocument {
	return &UserDocument{
		Categories:    []*Category{},
		Active:        nil,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// FindCategory はカテゴリIDで検索する。見つからない場合はnilを返す。
func (d *UserDocument) FindCategory(categoryID string) *Category {
	for _, c := range d.Categories {
		if c.ID == categoryID {
			return c
		}
	}
	return nil
}

// HasOpenSession はいずれかのカテゴリにオープンセッションが存在するかを返す。
// I1の厳格な適用（開始時の拒否判定）に使用する。
func (d *UserDocument) HasOpenSession() bool {
	for _, c := range d.Categories {
		if c.OpenSessionCount() > 0 {
			return true
		}
	}
	return false
}

// Clone はドキュメントのディープコピーを返す。
// 非同期セーブに渡すスナップショットの生成に使用する。
// インメモリ状態への後続の変更がインフライトのセーブへ影響しないことを保証する。
func (d *UserDocument) Clone() *UserDocument {
	clone := &UserDocument{
		DisplayName:   d.DisplayName,
		Categories:    make([]*Category, len(d.Categories)),
		SchemaVersion: d.SchemaVersion,
	}
	if d.Active != nil {
		a := *d.Active
		clone.Active = &a
	}
	for i, c := range d.Categories {
		cc := &Category{
			ID:       c.ID,
			Name:     c.Name,
			Sessions: make([]*Session, len(c.Sessions)),
		}
		for j, s := range c.Sessions {
			sc := *s
			if s.End != nil {
				e := *s.End
				sc.End = &e
			}
			if s.DurationMin != nil {
				m := *s.DurationMin
				sc.DurationMin = &m
			}
			cc.Sessions[j] = &sc
		}
		clone.Categories[i] = cc
	}
	return clone
}

// TotalClosedMinutes は全カテゴリのクローズ済みセッションのdurationMin合計を返す。
// オープンセッションはクローズされるまで0として扱う。
func (d *UserDocument) TotalClosedMinutes() int {
	total := 0
	for _, c := range d.Categories {
		for _, s := range c.Sessions {
			if !s.IsOpen() && s.DurationMin != nil {
				total += *s.DurationMin
			}
		}
	}
	return total
}
