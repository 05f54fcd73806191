package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/timetrackr/internal/model"
)

// DocumentSaver はSaverが必要とする保存インターフェース。
// store.DocumentStoreの部分集合として定義する。
type DocumentSaver interface {
	Save(ctx context.Context, username string, doc *model.UserDocument) error
}

// SaveRecorder はセーブ結果のメトリクス記録インターフェース。
type SaveRecorder interface {
	RecordSaveSuccess()
	RecordSaveFailure()
}

// saveTimeout は1回のセーブ試行に許容する時間。
const saveTimeout = 10 * time.Second

// Saver はユーザードキュメントの非同期セーブを実行する。
//
// Enqueueは呼び出し時点のスナップショット（ディープコピー）を取ってから
// ゴルーチンでセーブを実行するため、呼び出し側は完了を待たずに次の変更へ進める。
// 複数のセーブが同時にインフライトになり得るが、各セーブは独立した
// 全体上書きであり、最後に到達したものが勝つ（マージしない）。
// インフライトのセーブにキャンセルはない。
type Saver struct {
	store   DocumentSaver
	policy  Policy
	logger  *slog.Logger
	metrics SaveRecorder

	wg sync.WaitGroup
}

// NewSaver はSaverを生成する。metricsはnil可。
func NewSaver(store DocumentSaver, policy Policy, logger *slog.Logger, metrics SaveRecorder) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		store:   store,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
	}
}

// Enqueue はドキュメントのセーブを予約して即座に戻る。
// docはこの時点でスナップショットされるため、以降の変更は反映されない。
func (s *Saver) Enqueue(username string, doc *model.UserDocument) {
	snapshot := doc.Clone()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.save(username, snapshot)
	}()
}

// save はポリシーに従ってセーブを試行する。
// 全試行が失敗した場合はログに記録して破棄する（呼び出し側には伝播しない）。
func (s *Saver) save(username string, doc *model.UserDocument) {
	max := s.policy.MaxAttempts()
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			time.Sleep(s.policy.Backoff(attempt))
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := s.store.Save(ctx, username, doc)
		cancel()

		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordSaveSuccess()
			}
			return
		}

		s.logger.Warn("document save attempt failed",
			slog.String("username", username),
			slog.String("policy", s.policy.Name()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", max),
			slog.String("error", err.Error()),
		)
	}

	// 全試行失敗: ログのみでユーザーには通知しない。
	// インメモリ状態は正のまま継続するが、永続化は遅延し得る。
	if s.metrics != nil {
		s.metrics.RecordSaveFailure()
	}
	s.logger.Error("document save dropped",
		slog.String("username", username),
		slog.String("policy", s.policy.Name()),
	)
}

// Wait はインフライトの全セーブの完了を待つ。
// グレースフルシャットダウンとテストで使用する。
func (s *Saver) Wait() {
	s.wg.Wait()
}
