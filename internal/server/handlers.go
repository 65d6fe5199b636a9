package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/monitor"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("解析请求体失败: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"venues": s.registry.List(),
	})
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"venues": s.registry.List()})
}

type registerRequest struct {
	Venue       string             `json:"venue"`
	Credentials *trade.Credentials `json:"credentials,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	v, err := trade.ParseVenue(req.Venue)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	// 请求未携带凭据时回落到外部凭据存储。
	creds := trade.Credentials{}
	if req.Credentials != nil {
		creds = *req.Credentials
	} else if s.creds != nil {
		creds, err = s.creds.Lookup(v)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	if err := s.registry.Register(r.Context(), v, creds); err != nil {
		if s.monitor != nil {
			s.monitor.RecordError(r.Context(), "场所注册失败", err, map[string]interface{}{"venue": string(v)})
		}
		s.writeError(w, err)
		return
	}

	if s.monitor != nil {
		s.monitor.RecordVenueRegistration(r.Context(), v, true)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"venue": v, "registered": true})
}

type unregisterRequest struct {
	Venue string `json:"venue"`
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req unregisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	v, err := trade.ParseVenue(req.Venue)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	if err := s.registry.Unregister(v); err != nil {
		s.writeError(w, err)
		return
	}

	if s.monitor != nil {
		s.monitor.RecordVenueRegistration(r.Context(), v, false)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"venue": v, "registered": false})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("venue")); raw != "" {
		v, err := trade.ParseVenue(raw)
		if err != nil {
			s.writeBadRequest(w, err.Error())
			return
		}
		balance, err := s.router.GetBalance(r.Context(), v, strings.TrimSpace(q.Get("symbol")))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"venue": v, "balance": balance})
		return
	}

	balances, err := s.router.AllBalances(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"balances": balances})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	v, err := trade.ParseVenue(strings.TrimSpace(q.Get("venue")))
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		s.writeBadRequest(w, "symbol 不能为空")
		return
	}

	price, err := s.router.GetPrice(r.Context(), v, symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"venue": v, "symbol": symbol, "price": price})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req trade.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = uuid.NewString()
	}

	result, err := s.router.Execute(r.Context(), req, key)
	if s.monitor != nil && result.TradeID != "" {
		s.monitor.RecordTradeExecution(r.Context(), req, key, result)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Idempotency-Key", key)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	v, err := trade.ParseVenue(strings.TrimSpace(q.Get("venue")))
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	orderID := strings.TrimSpace(q.Get("order_id"))
	if orderID == "" {
		s.writeBadRequest(w, "order_id 不能为空")
		return
	}

	result, err := s.router.GetOrderStatus(r.Context(), v, orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type cancelRequest struct {
	Venue   string `json:"venue"`
	OrderID string `json:"order_id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	v, err := trade.ParseVenue(req.Venue)
	if err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	cancelled, err := s.router.CancelOrder(r.Context(), v, req.OrderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"order_id": req.OrderID, "cancelled": cancelled})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"agents": s.agents.List()})
	case http.MethodPost, http.MethodPut:
		var policy agent.Policy
		if err := decodeJSON(r, &policy); err != nil {
			s.writeBadRequest(w, err.Error())
			return
		}
		var err error
		if r.Method == http.MethodPost {
			err = s.agents.Create(policy)
		} else {
			err = s.agents.Update(policy)
		}
		if err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, policy.Summarize())
	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			s.writeBadRequest(w, "name 不能为空")
			return
		}
		if err := s.agents.Delete(name); err != nil {
			s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "deleted": true})
	default:
		methodNotAllowed(w)
	}
}

type analyzeRequest struct {
	Agent      string                 `json:"agent"`
	MarketData map[string]interface{} `json:"market_data"`
	Context    string                 `json:"context,omitempty"`
}

func (s *Server) policyFor(w http.ResponseWriter, name string) (agent.Policy, bool) {
	policy, ok := s.agents.Get(strings.TrimSpace(name))
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("未知代理 %q", name)})
		return agent.Policy{}, false
	}
	return policy, true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	policy, ok := s.policyFor(w, req.Agent)
	if !ok {
		return
	}

	decision, err := s.pipeline.Analyze(r.Context(), policy, req.MarketData, req.Context)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

type generateRequest struct {
	Agent      string                 `json:"agent"`
	MarketData map[string]interface{} `json:"market_data"`
	Portfolio  trade.Portfolio        `json:"portfolio"`
	Context    string                 `json:"context,omitempty"`
	Execute    bool                   `json:"execute"`
}

func (s *Server) handleGenerateTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	policy, ok := s.policyFor(w, req.Agent)
	if !ok {
		return
	}

	decision, result, err := s.pipeline.GenerateTrade(r.Context(), policy, req.MarketData, req.Portfolio, req.Context, req.Execute)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"decision": decision, "result": result})
}

// handleStreamAnalyze 以 SSE 推送流式分析，客户端断开即取消生成。
func (s *Server) handleStreamAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	policy, ok := s.policyFor(w, req.Agent)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "响应不支持流式输出"})
		return
	}

	stream, err := s.pipeline.StreamAnalyze(r.Context(), policy, req.MarketData, req.Context)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer stream.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range stream.Chunks() {
		if chunk.Err != nil {
			writeSSE(w, "error", chunk.Err.Error())
			flusher.Flush()
			return
		}
		writeSSE(w, "chunk", chunk.Text)
		flusher.Flush()
	}
	writeSSE(w, "done", "")
	flusher.Flush()
}

// writeSSE 按 SSE 规范写出单个事件，文本换行拆为多个 data 行。
func writeSSE(w http.ResponseWriter, event, text string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.monitor == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "监控服务未启用"})
		return
	}

	q := r.URL.Query()
	limit := 200
	if qs := q.Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := s.monitor.ListEvents(r.Context(), eventType, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}
