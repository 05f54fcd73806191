package timer

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timetrackr/internal/model"
)

// DocumentPersister はサービスが必要とする非同期セーブインターフェース。
// persist.Saverの部分集合として定義する。
type DocumentPersister interface {
	// Enqueue はドキュメントのセーブを予約して即座に戻る（fire-and-forget）。
	Enqueue(username string, doc *model.UserDocument)
}

// NoteSanitizer はノート本文のサニタイズインターフェース。
type NoteSanitizer interface {
	Sanitize(raw string) string
}

// Recorder はタイマー操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordTimerStart()
	RecordTimerStop()
	RecordManualAdd()
	RecordReconcileMiss()
}

// Service はタイマー制御のサービス層。
// 開始/停止/手動追記/ノート編集の状態遷移を実行し、変更のたびに
// 非同期セーブをトリガーする。全操作は明示的なUserStateを受け取る。
type Service struct {
	saver     DocumentPersister
	sanitizer NoteSanitizer
	logger    *slog.Logger
	metrics   Recorder

	// テストで差し替えるためのフック
	now   func() time.Time
	newID func() string
}

// NewService はServiceを生成する。sanitizer、metricsはnil可。
func NewService(saver DocumentPersister, sanitizer NoteSanitizer, logger *slog.Logger, metrics Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		saver:     saver,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start はタイマーを開始する。
// アクティブタイマーが存在する場合、またはいずれかのカテゴリにオープン
// セッションが残っている場合はAlreadyRunningで拒否する（I1の厳格な強制）。
// カテゴリが解決できない場合はUnknownCategoryで拒否する。
// 成功時はアクティブタイマーの設定とオープンセッションの追記を同一時刻
// （時計読み取り1回）で行い、セーブをトリガーする。
func (s *Service) Start(st *UserState, categoryID string) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	doc := st.doc
	if doc.Active != nil || doc.HasOpenSession() {
		return nil, model.NewAlreadyRunningError()
	}

	cat := doc.FindCategory(categoryID)
	if cat == nil {
		return nil, model.NewUnknownCategoryError(categoryID)
	}

	// 時計は1回だけ読む: アクティブタイマーと追記セッションは同一瞬間を共有する
	startMs := s.now().UnixMilli()

	doc.Active = &model.ActiveTimer{CategoryID: cat.ID, Start: startMs}
	session := &model.Session{
		ID:    s.newID(),
		Start: startMs,
		Note:  "",
	}
	cat.Sessions = append(cat.Sessions, session)

	if s.metrics != nil {
		s.metrics.RecordTimerStart()
	}
	s.logger.Info("timer started",
		slog.String("username", st.Username),
		slog.String("category_id", cat.ID),
		slog.String("session_id", session.ID),
	)

	s.saver.Enqueue(st.Username, doc)

	copied := *session
	return &copied, nil
}

// Stop はタイマーを停止する。
// アクティブタイマーが存在しない場合はNoActiveTimerで拒否する（状態不変）。
//
// カテゴリが計測中に削除されていた場合はCategoryVanishedを返すが、
// スタック状態を避けるためアクティブタイマーはクリアされる。
// 照合でオープンセッションが見つからない場合は整合性警告としてログし、
// アクティブタイマーのクリアのみ行う（操作は失敗しない）。
//
// noteがnilでない場合、クローズしたセッションにノートを付与する
// （ノート付与は任意の後付けステップであり、スキップ可能）。
// 最終処理は結果に関わらずアクティブタイマーをクリアし、セーブをトリガーする。
func (s *Service) Stop(st *UserState, note *string) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	doc := st.doc
	if doc.Active == nil {
		return nil, model.NewNoActiveTimerError()
	}

	active := doc.Active
	endMs := s.now().UnixMilli()

	cat := doc.FindCategory(active.CategoryID)
	if cat == nil {
		// カテゴリ消失はこの停止にとって致命的だが、タイマーは解除する
		doc.Active = nil
		s.saver.Enqueue(st.Username, doc)
		return nil, model.NewCategoryVanishedError(active.CategoryID)
	}

	res := reconcile(cat, active)
	if res.session == nil {
		// 整合性警告: オープンセッションが見つからない。タイマー解除のみ行う。
		if s.metrics != nil {
			s.metrics.RecordReconcileMiss()
		}
		s.logger.Warn("no open session matched active timer",
			slog.String("username", st.Username),
			slog.String("category_id", active.CategoryID),
			slog.Int64("active_start", active.Start),
		)
		doc.Active = nil
		s.saver.Enqueue(st.Username, doc)
		return nil, nil
	}

	if !res.exact {
		s.logger.Warn("reconcile matched open session with mismatched start",
			slog.String("username", st.Username),
			slog.String("session_id", res.session.ID),
			slog.Int64("session_start", res.session.Start),
			slog.Int64("active_start", active.Start),
		)
	}

	res.session.Close(endMs)
	if note != nil {
		res.session.Note = s.sanitizeNote(*note)
	}
	doc.Active = nil

	if s.metrics != nil {
		s.metrics.RecordTimerStop()
	}
	s.logger.Info("timer stopped",
		slog.String("username", st.Username),
		slog.String("category_id", cat.ID),
		slog.String("session_id", res.session.ID),
		slog.Int("duration_min", *res.session.DurationMin),
	)

	s.saver.Enqueue(st.Username, doc)

	copied := *res.session
	return &copied, nil
}

// AddManualSession は手動の後付けセッションを追記する。
// カテゴリ未解決、日付欠落、時間と分が両方0のいずれかはInvalidInputで拒否する。
// start = 指定日のローカル深夜0時、durationMin = hours*60+minutes、
// end = start + durationMin分 のクローズ済みセッションを追記する。
// アクティブタイマーには一切触れない。
func (s *Service) AddManualSession(st *UserState, categoryID, dateOnly string, hours, minutes int) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if dateOnly == "" {
		return nil, model.NewInvalidInputError("日付が指定されていません")
	}
	if hours <= 0 && minutes <= 0 {
		return nil, model.NewInvalidInputError("時間が0です")
	}
	if hours < 0 || minutes < 0 {
		return nil, model.NewInvalidInputError("負の時間は指定できません")
	}

	cat := st.doc.FindCategory(categoryID)
	if cat == nil {
		return nil, model.NewInvalidInputError("カテゴリが見つかりません: " + categoryID)
	}

	day, err := time.ParseInLocation("2006-01-02", dateOnly, time.Local)
	if err != nil {
		return nil, model.NewInvalidInputError("日付の形式が不正です: " + dateOnly)
	}

	startMs := day.UnixMilli()
	durationMin := hours*60 + minutes
	endMs := startMs + int64(durationMin)*60_000

	session := &model.Session{
		ID:          s.newID(),
		Start:       startMs,
		End:         &endMs,
		DurationMin: &durationMin,
		Note:        "",
	}
	cat.Sessions = append(cat.Sessions, session)

	if s.metrics != nil {
		s.metrics.RecordManualAdd()
	}
	s.logger.Info("manual session added",
		slog.String("username", st.Username),
		slog.String("category_id", cat.ID),
		slog.String("session_id", session.ID),
		slog.Int("duration_min", durationMin),
	)

	s.saver.Enqueue(st.Username, st.doc)

	copied := *session
	return &copied, nil
}

// EditNote はセッションのノートを上書きする。
// セッションが見つからない場合は何もしない（サイレントな無操作）。
// クローズ済みセッションに許される唯一の変更である。
func (s *Service) EditNote(st *UserState, categoryID, sessionID, text string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	cat := st.doc.FindCategory(categoryID)
	if cat == nil {
		return
	}
	session := cat.FindSession(sessionID)
	if session == nil {
		return
	}

	session.Note = s.sanitizeNote(text)
	s.saver.Enqueue(st.Username, st.doc)
}

// Status はアクティブタイマーの状態と経過時間を返す。
// 経過時間は壁時計時刻とactive.startの純粋関数であり、状態を変更しない。
func (s *Service) Status(st *UserState) (*model.ActiveTimer, time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.doc.Active == nil {
		return nil, 0
	}
	active := *st.doc.Active
	return &active, active.Elapsed(s.now())
}

// ReplaceDocument はインメモリドキュメントを差し替え、セーブをトリガーする。
// saveDataエンドポイント（外部のカテゴリ管理コラボレータによる全体上書き）の経路。
func (s *Service) ReplaceDocument(st *UserState, doc *model.UserDocument) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = model.CurrentSchemaVersion
	}
	st.doc = doc
	s.saver.Enqueue(st.Username, st.doc)
}

func (s *Service) sanitizeNote(raw string) string {
	if s.sanitizer == nil {
		return raw
	}
	return s.sanitizer.Sanitize(raw)
}
