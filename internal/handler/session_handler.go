package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/timetrackr/internal/middleware"
	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/timer"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	// AddManualSession は手動の後付けセッションを追記する。
	AddManualSession(st *timer.UserState, categoryID, dateOnly string, hours, minutes int) (*model.Session, error)
	// EditNote はセッションのノートを上書きする。対象が存在しない場合は何もしない。
	EditNote(st *timer.UserState, categoryID, sessionID, text string)
}

// SessionHandler は手動追記とノート編集のHTTPハンドラー。
type SessionHandler struct {
	states     StateAcquirer
	service    SessionServiceInterface
	sessionLog SessionLogAppender
}

// NewSessionHandler はSessionHandlerを生成する。sessionLogはnil可。
func NewSessionHandler(states StateAcquirer, service SessionServiceInterface, sessionLog SessionLogAppender) *SessionHandler {
	return &SessionHandler{
		states:     states,
		service:    service,
		sessionLog: sessionLog,
	}
}

// addManualSessionRequest は手動追記リクエストのボディ。
type addManualSessionRequest struct {
	CategoryID string `json:"categoryId"`
	Date       string `json:"date"` // YYYY-MM-DD
	Hours      int    `json:"hours"`
	Minutes    int    `json:"minutes"`
}

// editNoteRequest はノート編集リクエストのボディ。
type editNoteRequest struct {
	CategoryID string `json:"categoryId"`
	SessionID  string `json:"sessionId"`
	Note       string `json:"note"`
}

// AddManual は手動の後付けセッションを追記する。
// POST /api/sessions/manual
func (h *SessionHandler) AddManual(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req addManualSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	st, err := h.states.Acquire(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.AddManualSession(st, req.CategoryID, req.Date, req.Hours, req.Minutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.mirrorManualSession(r.Context(), username, st, req.CategoryID, session)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// EditNote はセッションのノートを上書きする。
// POST /api/sessions/note
//
// 対象セッションが存在しない場合もサイレントに成功を返す（無操作）。
func (h *SessionHandler) EditNote(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req editNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	st, err := h.states.Acquire(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.service.EditNote(st, req.CategoryID, req.SessionID, req.Note)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// mirrorManualSession は手動追記セッションを追記型ストレージへミラーする。
// 失敗はログのみ。
func (h *SessionHandler) mirrorManualSession(ctx context.Context, username string, st *timer.UserState, categoryID string, session *model.Session) {
	if h.sessionLog == nil {
		return
	}
	categoryName := ""
	if cat := st.Snapshot().FindCategory(categoryID); cat != nil {
		categoryName = cat.Name
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
