// Package persist は非同期セーブの実行とリトライ戦略を提供する。
//
// セーブは変更経路をブロックしない（fire-and-forget）。失敗時の扱いは
// Policyとして明示的に注入され、ログして破棄するか、限定回数リトライするかを
// 設定で選択できる。
package persist

import "time"

// Policy は失敗したセーブ試行の扱いを決める戦略インターフェース。
type Policy interface {
	// MaxAttempts は最大試行回数を返す（1以上）。
	MaxAttempts() int

	// Backoff はattempt回目（2始まり）の試行前に置く遅延を返す。
	Backoff(attempt int) time.Duration

	// Name はログ用の戦略名を返す。
	Name() string
}

// DropPolicy は1回だけ試行し、失敗をログして破棄する戦略。
// リトライもキューイングもしない。インメモリ状態は現行セッションの間は
// 正となるが、永続化は保証されない。
type DropPolicy struct{}

// MaxAttempts は常に1を返す。
func (DropPolicy) MaxAttempts() int { return 1 }

// Backoff は呼ばれない（試行は1回のみ）。
func (DropPolicy) Backoff(attempt int) time.Duration { return 0 }

// Name は戦略名を返す。
func (DropPolicy) Name() string { return "drop" }

const (
	// defaultInitialBackoff は指数バックオフの初回遅延。
	defaultInitialBackoff = 500 * time.Millisecond
	// defaultMaxBackoff は指数バックオフの最大遅延。
	defaultMaxBackoff = 30 * time.Second
)

// BackoffPolicy は限定回数の指数バックオフリトライ戦略。
// 初回Initial、2倍ずつ増加、最大MaxDelay。
type BackoffPolicy struct {
	Max      int
	Initial  time.Duration
	MaxDelay time.Duration
}

// NewBackoffPolicy はデフォルト遅延のBackoffPolicyを生成する。
func NewBackoffPolicy(maxAttempts int) BackoffPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return BackoffPolicy{
		Max:      maxAttempts,
		Initial:  defaultInitialBackoff,
		MaxDelay: defaultMaxBackoff,
	}
}

// MaxAttempts は最大試行回数を返す。
func (p BackoffPolicy) MaxAttempts() int { return p.Max }

// Backoff はattempt回目の試行前の遅延を計算する。
func (p BackoffPolicy) Backoff(attempt int) time.Duration {
	delay := p.Initial
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Name は戦略名を返す。
func (p BackoffPolicy) Name() string { return "backoff" }
