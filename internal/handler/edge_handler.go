package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/timetrackr/internal/model"
)

// SessionLogInterface はエッジ互換ハンドラーが必要とするストアインターフェース。
type SessionLogInterface interface {
	// Append はユーザーのリスト末尾にレコードを追記する。
	Append(ctx context.Context, username string, rec model.SessionRecord) error
	// List はユーザーのレコードを追記順で返す。
	List(ctx context.Context, username string) ([]model.SessionRecord, error)
}

// EdgeHandler はエッジファンクション互換の追記型エンドポイントのHTTPハンドラー。
//
// 認証を持たず、ユーザー名はリクエスト自身が運ぶ。同一IDの二重追記は
// 重複レコードになる（ドキュメント保存の冪等性とは対照的な形状）。
type EdgeHandler struct {
	log SessionLogInterface

	// テストで差し替えるためのフック
	now func() time.Time
}

// NewEdgeHandler はEdgeHandlerを生成する。
func NewEdgeHandler(log SessionLogInterface) *EdgeHandler {
	return &EdgeHandler{
		log: log,
		now: time.Now,
	}
}

// saveSessionRequest はエッジ互換の追記リクエストのボディ。
// Timestampはクライアントから受け取らず、サーバー時刻で上書きする。
type saveSessionRequest struct {
	Username    string `json:"username"`
	ID          string `json:"id"`
	Category    string `json:"category"`
	DurationMin int    `json:"durationMin"`
	Note        string `json:"note"`
}

// SaveSession はセッションレコードを`sessions:<username>`リストへ追記する。
// POST /api/saveSession
func (h *EdgeHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	var req saveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if req.Username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("ユーザー名が指定されていません"))
		return
	}

	rec := model.SessionRecord{
		ID:          req.ID,
		Category:    req.Category,
		DurationMin: req.DurationMin,
		Note:        req.Note,
		Timestamp:   h.now().UnixMilli(),
	}

	if err := h.log.Append(r.Context(), req.Username, rec); err != nil {
		handleServiceError(w, model.NewPersistenceFailureError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// GetSessions はユーザーのセッションレコードを追記順で返す。
// GET /api/getSessions?username=xxx
func (h *EdgeHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("ユーザー名が指定されていません"))
		return
	}

	records, err := h.log.List(r.Context(), username)
	if err != nil {
		handleServiceError(w, model.NewPersistenceFailureError(err.Error()))
		return
	}
	if records == nil {
		records = []model.SessionRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
