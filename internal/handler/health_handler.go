package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// StorePinger はストアへの接続性検証のインターフェース。
// store.DocumentStoreの部分集合として定義する。
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	pinger StorePinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(pinger StorePinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// Check はプロセスの生存とストアへの接続性を検証する。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.pinger.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
