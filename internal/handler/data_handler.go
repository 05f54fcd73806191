package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/timetrackr/internal/middleware"
	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/timer"
)

// DataServiceInterface はデータハンドラーが必要とするサービスインターフェース。
type DataServiceInterface interface {
	// ReplaceDocument はインメモリドキュメントを差し替え、セーブをトリガーする。
	ReplaceDocument(st *timer.UserState, doc *model.UserDocument)
}

// DataHandler はユーザードキュメント全体のロード/セーブのHTTPハンドラー。
// saveDataは外部のカテゴリ管理コラボレータによる全体上書きの経路であり、
// バージョンチェックは行わない（last-writer-wins）。
type DataHandler struct {
	states  StateAcquirer
	service DataServiceInterface
}

// NewDataHandler はDataHandlerを生成する。
func NewDataHandler(states StateAcquirer, service DataServiceInterface) *DataHandler {
	return &DataHandler{
		states:  states,
		service: service,
	}
}

// saveDataResponse はsaveData成功時のレスポンス。
type saveDataResponse struct {
	OK bool `json:"ok"`
}

// LoadData はユーザードキュメント全体を返す。
// GET /api/loadData
//
// ドキュメントが存在しないユーザーには空のデフォルトドキュメントが返る
// （遅延生成）。表示名が未設定の場合はログインセッションの表示名で補完する。
func (h *DataHandler) LoadData(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	st, err := h.states.Acquire(r.Context(), session.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	doc := st.Snapshot()
	if doc.DisplayName == "" {
		doc.DisplayName = session.DisplayName
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// SaveData はユーザードキュメント全体を無条件に上書きする。
// POST /api/saveData
//
// インメモリ状態も差し替える（カテゴリの追加・削除はこの経路で行われる）。
func (h *DataHandler) SaveData(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var doc model.UserDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeInvalidRequestResponse(w)
		return
	}
	if doc.Categories == nil {
		doc.Categories = []*model.Category{}
	}

	st, err := h.states.Acquire(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.service.ReplaceDocument(st, &doc)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saveDataResponse{OK: true})
}
