// Package export はカテゴリ/セッションをCSVへ平坦化するフォーマッタを提供する。
//
// フィールドのエスケープ規則はユーザー別エクスポートと管理者集計エクスポートで
// 同一に適用される: カンマ・二重引用符・改行を含むフィールドのみ二重引用符で
// 囲み、埋め込みの二重引用符は二重化する。それ以外はそのまま出力する。
package export

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/timetrackr/internal/model"
)

// Row はエクスポートの1行（セッション1件）を表す。
type Row struct {
	Timestamp   int64 // セッション開始時刻（エポックミリ秒）
	Category    string
	DurationMin int
	Note        string
}

// NamedDocument は管理者集計エクスポートの入力（ユーザー名付きドキュメント）。
type NamedDocument struct {
	Name string
	Doc  *model.UserDocument
}

// Flatten は全カテゴリのセッションを行列へ平坦化し、
// セッション開始時刻の降順で返す。
// オープンセッションはdurationMin 0で含まれる（クローズまで計上しない）。
func Flatten(doc *model.UserDocument) []Row {
	var rows []Row
	for _, c := range doc.Categories {
		for _, s := range c.Sessions {
			dur := 0
			if s.DurationMin != nil {
				dur = *s.DurationMin
			} else if s.End != nil {
				dur = model.DurationMinutes(s.Start, *s.End)
			}
			rows = append(rows, Row{
				Timestamp:   s.Start,
				Category:    c.Name,
				DurationMin: dur,
				Note:        s.Note,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp > rows[j].Timestamp
	})
	return rows
}

// EscapeField はCSVフィールドをエスケープする。
// カンマ・二重引用符・改行を含む場合に限り引用し、埋め込みの二重引用符を
// 二重化する。それ以外のフィールドはそのまま返す。
func EscapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// formatTimestamp はエポックミリ秒をRFC3339のローカル時刻文字列にする。
func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}

// WriteUserCSV はユーザー別エクスポートのCSVを書き込む。
// 行はセッション開始時刻の降順。
func WriteUserCSV(w io.Writer, doc *model.UserDocument) error {
	var b strings.Builder
	b.WriteString("timestamp,category,duration_min,note\n")
	for _, row := range Flatten(doc) {
		writeRow(&b, []string{
			formatTimestamp(row.Timestamp),
			row.Category,
			strconv.Itoa(row.DurationMin),
			row.Note,
		})
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteAggregateCSV は管理者集計エクスポートのCSVを書き込む。
// 全ユーザーの行をまとめ、セッション開始時刻の降順で出力する。
// エスケープ規則はユーザー別エクスポートと同一。
func WriteAggregateCSV(w io.Writer, users []NamedDocument) error {
	type namedRow struct {
		user string
		row  Row
	}
	var rows []namedRow
	for _, u := range users {
		for _, row := range Flatten(u.Doc) {
			rows = append(rows, namedRow{user: u.Name, row: row})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].row.Timestamp > rows[j].row.Timestamp
	})

	var b strings.Builder
	b.WriteString("user,timestamp,category,duration_min,note\n")
	for _, nr := range rows {
		writeRow(&b, []string{
			nr.user,
			formatTimestamp(nr.row.Timestamp),
			nr.row.Category,
			strconv.Itoa(nr.row.DurationMin),
			nr.row.Note,
		})
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeField(f))
	}
	b.WriteByte('\n')
}
