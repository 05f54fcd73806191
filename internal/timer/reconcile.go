package timer

import "github.com/hitoshi/timetrackr/internal/model"

// reconcileResult は停止イベントの照合結果。
type reconcileResult struct {
	session *model.Session // クローズ対象。見つからない場合はnil
	exact   bool           // 開始時刻がアクティブタイマーと厳密一致したか
}

// reconcile はアクティブタイマーに対応するオープンセッションを
// カテゴリのセッション列から特定する。
//
// 挿入順の逆順に走査し、開始時刻がアクティブタイマーと厳密一致する
// オープンセッションを最優先で選ぶ。厳密一致がない場合は、最後に追記された
// オープンセッションへ縮退する（開始時の厳格なI1強制により通常ここには
// 到達しないが、旧クライアントや並行デバイスが書いたドキュメントを許容する）。
// どちらも見つからなければ照合失敗であり、呼び出し側は整合性警告として
// 扱う（停止操作自体は失敗しない）。
func reconcile(cat *model.Category, active *model.ActiveTimer) reconcileResult {
	var fallback *model.Session
	for i := len(cat.Sessions) - 1; i >= 0; i-- {
		s := cat.Sessions[i]
		if !s.IsOpen() {
			continue
		}
		if s.Start == active.Start {
			return reconcileResult{session: s, exact: true}
		}
		if fallback == nil {
			fallback = s
		}
	}
	return reconcileResult{session: fallback, exact: false}
}
