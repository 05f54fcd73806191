// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, state, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAlreadyRunning     = "ALREADY_RUNNING"
	ErrCodeNoActiveTimer      = "NO_ACTIVE_TIMER"
	ErrCodeUnknownCategory    = "UNKNOWN_CATEGORY"
	ErrCodeCategoryVanished   = "CATEGORY_VANISHED"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodePersistenceFailure = "PERSISTENCE_FAILURE"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewAlreadyRunningError はタイマー二重起動エラーを生成する。
// アクティブタイマーが存在する場合に加え、いずれかのカテゴリに
// オープンセッションが残っている場合も開始は拒否される。
func NewAlreadyRunningError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRunning,
		Message:  "タイマーはすでに実行中です。",
		Category: "state",
		Action:   "実行中のタイマーを停止してから開始してください。",
	}
}

// NewNoActiveTimerError はアクティブタイマー不在エラーを生成する。
func NewNoActiveTimerError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveTimer,
		Message:  "実行中のタイマーがありません。",
		Category: "state",
		Action:   "タイマーを開始してから停止してください。",
	}
}

// NewUnknownCategoryError はカテゴリ未解決エラーを生成する。
func NewUnknownCategoryError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCategory,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", categoryID),
		Category: "validation",
		Action:   "カテゴリIDを確認してください。",
	}
}

// NewCategoryVanishedError は計測中にカテゴリが削除された場合のエラーを生成する。
// この停止操作は失敗するが、アクティブタイマーはクリア済みであり、
// スタック状態にはならない。
func NewCategoryVanishedError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryVanished,
		Message:  fmt.Sprintf("計測中のカテゴリが削除されています: %s", categoryID),
		Category: "state",
		Action:   "カテゴリ一覧を再読み込みしてください。計測中のタイマーは解除済みです。",
	}
}

// NewInvalidInputError は手動入力の検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "カテゴリ、日付、0分より大きい時間を指定してください。",
	}
}

// NewPersistenceFailureError はロード失敗エラーを生成する。
// セーブの失敗はユーザーに通知せずログのみに記録するため、
// このエラーはロード経路でのみ使用される。
func NewPersistenceFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailure,
		Message:  fmt.Sprintf("データの読み込みに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
