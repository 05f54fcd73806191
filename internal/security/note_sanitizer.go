// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NoteSanitizerService はセッションノートをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// ノートはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NoteSanitizerService はノートのサニタイズ機能のインターフェースを定義する。
// セッションノートの保存前（停止時・編集時）に使用される。
type NoteSanitizerService interface {
	// Sanitize はノートをサニタイズしてプレーンテキストを返す。
	// 全てのHTMLタグ（script, img, on*イベント属性を含む）を除去し、
	// 前後の空白を取り除く。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// NoteSanitizer はNoteSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type NoteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はNoteSanitizerの新しいインスタンスを生成する。
// ノートに許可するタグは一切ないため、StrictPolicy（全タグ除去）を使う。
func NewNoteSanitizer() *NoteSanitizer {
	return &NoteSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はノートをサニタイズしてプレーンテキストを返す。
func (s *NoteSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
