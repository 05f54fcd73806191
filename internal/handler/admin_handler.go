package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/timetrackr/internal/admin"
)

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	// Overview は全ユーザーの集計を返す。
	Overview(ctx context.Context) ([]admin.UserOverview, error)
	// WriteCSV は全ユーザーのセッションを1つのCSVへ書き込む。
	WriteCSV(ctx context.Context, w io.Writer) error
}

// AdminHandler は管理者集計ビューのHTTPハンドラー。
// ロールの検証はミドルウェア（AdminOnly）が行う。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// Overview は全ユーザーの集計（表示名・カテゴリ・合計時間）を返す。
// GET /api/admin
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overviews, err := h.service.Overview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overviews)
}

// ExportCSV は全ユーザーのセッションを1つのCSVとしてダウンロードさせる。
// GET /api/admin/export
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	// ヘッダー送出後に500へ切り替えられないため、バッファへ書いてから送出する
	var buf bytes.Buffer
	if err := h.service.WriteCSV(r.Context(), &buf); err != nil {
		handleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("timetrackr_all_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write aggregate CSV", slog.String("error", err.Error()))
	}
}
