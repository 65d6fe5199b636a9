package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/config"
	"github.com/SyrupLabs-code/Syrup/internal/monitor"
	"github.com/SyrupLabs-code/Syrup/internal/pipeline"
	"github.com/SyrupLabs-code/Syrup/internal/router"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// Server 对外暴露 HTTP 接口：场所注册、余额与价格查询、
// 交易执行、代理管理、AI 分析与流式输出、监控事件检索。
type Server struct {
	cfg      config.ServerConfig
	registry *venue.Registry
	router   *router.Router
	agents   *agent.Registry
	pipeline *pipeline.Pipeline
	creds    venue.CredentialStore
	monitor  *monitor.Service
	logger   *zap.Logger
}

// New 组装 HTTP 服务。monitor 允许为空，此时事件检索接口返回 503。
func New(
	cfg config.ServerConfig,
	registry *venue.Registry,
	rt *router.Router,
	agents *agent.Registry,
	pl *pipeline.Pipeline,
	creds venue.CredentialStore,
	svc *monitor.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		router:   rt,
		agents:   agents,
		pipeline: pl,
		creds:    creds,
		monitor:  svc,
		logger:   logger,
	}
}

// Run 启动监听并阻塞，ctx 取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.routes()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("HTTP 服务已启动", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭 HTTP 服务失败: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("HTTP 服务异常: %w", err)
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/platforms", s.handlePlatforms)
	mux.HandleFunc("/platforms/register", s.handleRegister)
	mux.HandleFunc("/platforms/unregister", s.handleUnregister)
	mux.HandleFunc("/balances", s.handleBalances)
	mux.HandleFunc("/price", s.handlePrice)
	mux.HandleFunc("/trades", s.handleExecute)
	mux.HandleFunc("/trades/status", s.handleOrderStatus)
	mux.HandleFunc("/trades/cancel", s.handleCancel)
	mux.HandleFunc("/agents", s.handleAgents)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/analyze/stream", s.handleStreamAnalyze)
	mux.HandleFunc("/trades/generate", s.handleGenerateTrade)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("写入响应失败", zap.Error(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError 把错误分类映射为 HTTP 状态码，并保留可读原因。
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := venue.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case venue.KindUnknownVenue:
		status = http.StatusNotFound
	case venue.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case venue.KindInsufficientFunds, venue.KindInvalidSymbol,
		venue.KindSlippageExceeded, venue.KindRejected:
		status = http.StatusUnprocessableEntity
	case venue.KindConnectivity:
		status = http.StatusBadGateway
	case venue.KindVenueUnavailable:
		status = http.StatusServiceUnavailable
	case venue.KindTimeout:
		status = http.StatusGatewayTimeout
	case venue.KindProvider:
		status = http.StatusBadGateway
	}
	if errors.Is(err, venue.ErrCredentialsNotFound) {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Kind: string(kind)})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
