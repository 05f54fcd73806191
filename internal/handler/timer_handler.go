// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/timetrackr/internal/middleware"
	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/timer"
)

// StateAcquirer はユーザーごとのセッションコンテキストを取得するインターフェース。
// timer.Registryの部分集合として定義する。
type StateAcquirer interface {
	Acquire(ctx context.Context, username string) (*timer.UserState, error)
}

// TimerServiceInterface はタイマーハンドラーが必要とするサービスインターフェース。
type TimerServiceInterface interface {
	// Start はタイマーを開始する。
	Start(st *timer.UserState, categoryID string) (*model.Session, error)
	// Stop はタイマーを停止する。noteがnilでなければノートを付与する。
	Stop(st *timer.UserState, note *string) (*model.Session, error)
	// Status はアクティブタイマーと経過時間を返す。
	Status(st *timer.UserState) (*model.ActiveTimer, time.Duration)
}

// SessionLogAppender は確定セッションの追記型ストレージへのミラー書き込みインターフェース。
// store.SessionLogStoreの部分集合として定義する。
type SessionLogAppender interface {
	Append(ctx context.Context, username string, rec model.SessionRecord) error
}

// TimerHandler はタイマー操作のHTTPハンドラー。
// sessionLogがnilでない場合、停止で確定したセッションを追記型ストレージへ
// ミラーする（エッジファンクション互換の形状）。ミラーはベストエフォート。
type TimerHandler struct {
	states     StateAcquirer
	service    TimerServiceInterface
	sessionLog SessionLogAppender
}

// NewTimerHandler はTimerHandlerを生成する。sessionLogはnil可。
func NewTimerHandler(states StateAcquirer, service TimerServiceInterface, sessionLog SessionLogAppender) *TimerHandler {
	return &TimerHandler{
		states:     states,
		service:    service,
		sessionLog: sessionLog,
	}
}

// startTimerRequest はタイマー開始リクエストのボディ。
type startTimerRequest struct {
	CategoryID string `json:"categoryId"`
}

// stopTimerRequest はタイマー停止リクエストのボディ。
// Noteがnullまたは省略の場合、ノート付与はスキップされる。
type stopTimerRequest struct {
	Note *string `json:"note"`
}

// sessionResponse はセッション1件のAPIレスポンス。
type sessionResponse struct {
	ID          string `json:"id"`
	Start       int64  `json:"start"`
	End         *int64 `json:"end"`
	DurationMin *int   `json:"durationMin"`
	Note        string `json:"note"`
}

// timerStatusResponse はタイマー状態のAPIレスポンス。
// Activeがnullの場合は計測中のタイマーが存在しない。
type timerStatusResponse struct {
	Active    *model.ActiveTimer `json:"active"`
	ElapsedMs int64              `json:"elapsedMs"`
}

// Start はタイマーを開始する。
// POST /api/timer/start
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req startTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}
	if req.CategoryID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("カテゴリIDが空です"))
		return
	}

	st, err := h.states.Acquire(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.Start(st, req.CategoryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// Stop はタイマーを停止する。
// POST /api/timer/stop
//
// 照合でオープンセッションが見つからなかった場合はsession: nullの200を返す
// （タイマーは解除済みであり、操作としては成功）。
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req stopTimerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidRequestResponse(w)
			return
		}
	}

	st, err := h.states.Acquire(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// ミラー用にカテゴリ名を停止前に解決する（停止後はactiveがクリアされる）
	categoryName := activeCategoryName(st)

	session, err := h.service.Stop(st, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if session != nil {
		h.mirrorSession(r.Context(), username, categoryName, session)
	}

	w.Header().Set("Content-Type", "application/json")
	if session == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{"session": nil})
		return
	}
	resp := toSessionResponse(session)
	json.NewEncoder(w).Encode(map[string]interface{}{"session": resp})
}

// Status はアクティブタイマーの状態を返す。
// GET /api/timer
func (h *TimerHandler) Status(w http.ResponseWriter, r *http.Request) {
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

	active, elapsed := h.service.Status(st)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(timerStatusResponse{
		Active:    active,
		ElapsedMs: elapsed.Milliseconds(),
	})
}

// mirrorSession は確定セッションを追記型ストレージへミラーする。
// 失敗はログのみ（メインの操作は成功済み）。
func (h *TimerHandler) mirrorSession(ctx context.Context, username, categoryName string, session *model.Session) {
	if h.sessionLog == nil {
		return
	}
	dur := 0
	if session.DurationMin != nil {
		dur = *session.DurationMin
	}
	rec := model.SessionRecord{
		ID:          session.ID,
		Category:    categoryName,
		DurationMin: dur,
		Note:        session.Note,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := h.sessionLog.Append(ctx, username, rec); err != nil {
		logMirrorFailure(username, session.ID, err)
	}
}

// logMirrorFailure は追記型ストレージへのミラー失敗を警告ログに記録する。
func logMirrorFailure(username, sessionID string, err error) {
	slog.Warn("failed to mirror session to session log",
		slog.String("username", username),
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

// activeCategoryName はアクティブタイマーのカテゴリ名を返す。
// タイマーなし・カテゴリ消失の場合は空文字列。
func activeCategoryName(st *timer.UserState) string {
	doc := st.Snapshot()
	if doc.Active == nil {
		return ""
	}
	cat := doc.FindCategory(doc.Active.CategoryID)
	if cat == nil {
		return ""
	}
	return cat.Name
}

// toSessionResponse はmodel.SessionからAPIレスポンスに変換する。
func toSessionResponse(session *model.Session) sessionResponse {
	return sessionResponse{
		ID:          session.ID,
		Start:       session.Start,
		End:         session.End,
		DurationMin: session.DurationMin,
		Note:        session.Note,
	}
}
