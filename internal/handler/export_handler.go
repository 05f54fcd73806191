package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/timetrackr/internal/export"
	"github.com/hitoshi/timetrackr/internal/middleware"
)

// ExportHandler はユーザー別CSVエクスポートのHTTPハンドラー。
type ExportHandler struct {
	states StateAcquirer
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(states StateAcquirer) *ExportHandler {
	return &ExportHandler{states: states}
}

// Export はユーザーの全セッションをCSVとしてダウンロードさせる。
// GET /api/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	st, err := h.states.Acquire(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("timetrackr_%s_%s.csv", username, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WriteUserCSV(w, st.Snapshot()); err != nil {
		// ヘッダー送出後のため、ログのみ
		slog.Error("failed to write user CSV",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
}
