// Package admin は全ユーザー横断の集計ビューを提供する。
package admin

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hitoshi/timetrackr/internal/export"
	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/store"
)

// UserOverview は管理者ビューの1ユーザー分の集計。
// 合計はクローズ済みセッションのみ計上する（オープンセッションは含めない）。
type UserOverview struct {
	Username     string            `json:"username"`
	DisplayName  string            `json:"displayName"`
	TotalMinutes int               `json:"totalMinutes"`
	TotalHuman   string            `json:"totalHuman"`
	Categories   []*model.Category `json:"categories"`
}

// Service は全ユーザーのドキュメントを読み出して集計する。
type Service struct {
	store  store.DocumentStore
	logger *slog.Logger
}

func NewService(st store.DocumentStore, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Overview は全ユーザーの合計作業時間を返す。
// 表示名が未設定のユーザーはユーザー名で代替する。
func (s *Service) Overview(ctx context.Context) ([]UserOverview, error) {
	entries, err := s.store.LoadAll(ctx)
	if err != nil {
		s.logger.Error("管理者集計のロードに失敗", "error", err)
		return nil, model.NewPersistenceFailureError(err.Error())
	}

	overviews := make([]UserOverview, 0, len(entries))
	for _, e := range entries {
		name := e.Doc.DisplayName
		if name == "" {
			name = e.Username
		}
		total := e.Doc.TotalClosedMinutes()
		overviews = append(overviews, UserOverview{
			Username:     e.Username,
			DisplayName:  name,
			TotalMinutes: total,
			TotalHuman:   MinutesToHuman(total),
			Categories:   e.Doc.Categories,
		})
	}
	return overviews, nil
}

// WriteCSV は全ユーザーのセッションを1つのCSVへまとめて書き込む。
// エスケープ規則はユーザー別エクスポートと同一。
func (s *Service) WriteCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.store.LoadAll(ctx)
	if err != nil {
		s.logger.Error("管理者エクスポートのロードに失敗", "error", err)
		return model.NewPersistenceFailureError(err.Error())
	}

	named := make([]export.NamedDocument, 0, len(entries))
	for _, e := range entries {
		name := e.Doc.DisplayName
		if name == "" {
			name = e.Username
		}
		named = append(named, export.NamedDocument{Name: name, Doc: e.Doc})
	}
	return export.WriteAggregateCSV(w, named)
}

// MinutesToHuman は分数を「XhYm」形式にする。1時間未満は「Ym」。
func MinutesToHuman(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h := minutes / 60
	m := minutes % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}
