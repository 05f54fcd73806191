package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/timetrackr/internal/metrics"
	"github.com/hitoshi/timetrackr/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// タイマー・ドキュメント
	States         StateAcquirer
	TimerService   TimerServiceInterface
	DataService    DataServiceInterface
	SessionService SessionServiceInterface

	// 追記型ストレージ（エッジ互換エンドポイント用、必須）
	SessionLog SessionLogInterface
	// MirrorSessionLog がtrueの場合、停止・手動追記で確定したセッションを
	// 追記型ストレージへもミラーする（STORAGE_SHAPE=sessionlog）。
	MirrorSessionLog bool

	// 管理者集計
	AdminService AdminServiceInterface

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ヘルスチェック・メトリクス
	StorePinger StorePinger
	Gatherer    prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeaders → Logging → Recovery → CSRF → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// エッジ互換ルート（/api/saveSession, /api/getSessions）とヘルスチェック・
// メトリクスは認証グループの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware())

	var mirror SessionLogAppender
	if deps.MirrorSessionLog {
		mirror = deps.SessionLog
	}

	timerHandler := NewTimerHandler(deps.States, deps.TimerService, mirror)
	dataHandler := NewDataHandler(deps.States, deps.DataService)
	sessionHandler := NewSessionHandler(deps.States, deps.SessionService, mirror)
	exportHandler := NewExportHandler(deps.States)
	adminHandler := NewAdminHandler(deps.AdminService)
	edgeHandler := NewEdgeHandler(deps.SessionLog)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	healthHandler := NewHealthHandler(deps.StorePinger)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// CSRFトークン取得（ダブルサブミットCookie方式）
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// エッジファンクション互換の追記型エンドポイント（認証なし）
	r.Post("/api/saveSession", edgeHandler.SaveSession)
	r.Get("/api/getSessions", edgeHandler.GetSessions)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ドキュメント全体のロード/セーブ
		r.Get("/api/loadData", dataHandler.LoadData)
		r.Post("/api/saveData", dataHandler.SaveData)

		// タイマー操作
		r.Route("/api/timer", func(r chi.Router) {
			r.Get("/", timerHandler.Status)
			r.Post("/start", timerHandler.Start)
			r.Post("/stop", timerHandler.Stop)
		})

		// 手動追記・ノート編集
		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/manual", sessionHandler.AddManual)
			r.Post("/note", sessionHandler.EditNote)
		})

		// CSVエクスポート（エクスポート専用レート制限を追加）
		r.With(deps.RateLimiter.ExportMiddleware()).Get("/api/export", exportHandler.Export)

		// セッション管理
		r.Get("/api/whoami", authHandler.Whoami)
		r.Post("/api/logout", authHandler.Logout)

		// 管理者集計（管理者ロールのみ）
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminOnlyMiddleware())
			r.Get("/", adminHandler.Overview)
			r.With(deps.RateLimiter.ExportMiddleware()).Get("/export", adminHandler.ExportCSV)
		})
	})

	return r
}
