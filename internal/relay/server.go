package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"broker-bridge/internal/ritual"
	"broker-bridge/internal/trader"
)

// Server 为本地 HTTP 门面，与 WebSocket 读循环共用同一套仪式入口。
// 并发请求在 trader.API 的终端锁后排队，不会在仪式内交叠。
type Server struct {
	api    *trader.API
	addr   string
	logger *zap.Logger
}

// NewServer 创建本地 HTTP 服务。
func NewServer(api *trader.API, host string, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		api:    api,
		addr:   fmt.Sprintf("%s:%d", host, port),
		logger: logger,
	}
}

// Start 启动服务并在 ctx 取消时优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("关闭本地服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("本地服务异常", zap.Error(err))
		}
	}()

	s.logger.Info("本地接口已启动", zap.String("addr", s.addr))
	return nil
}

// Handler 返回完整的 HTTP 处理器，供测试使用。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/trade", s.handleTrade)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/history", s.handleHistory)
	return withCORS(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.api == nil {
		http.Error(w, "trader unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, s.api.GetStatus())
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.api == nil {
		http.Error(w, "trader unavailable", http.StatusServiceUnavailable)
		return
	}

	var tc TradeCommand
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	side, err := ritual.ParseSide(tc.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := s.api.PlaceOrder(ritual.OrderRequest{
		Side:     side,
		Code:     tc.StockCode,
		Quantity: tc.Quantity,
		Price:    tc.Price,
	})
	if err != nil && outcome.Message == "" {
		outcome.Message = err.Error()
	}
	s.writeJSON(w, orderStatusCode(err), outcome)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.api == nil {
		http.Error(w, "trader unavailable", http.StatusServiceUnavailable)
		return
	}

	var ec ExportCommand
	if err := json.NewDecoder(r.Body).Decode(&ec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := s.api.Export(ec.DataType)
	if errors.Is(err, ritual.ErrInvalidRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, orderStatusCode(err), report)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if s.api == nil {
		http.Error(w, "trader unavailable", http.StatusServiceUnavailable)
		return
	}

	result, err := s.api.Portfolio()
	s.writeJSON(w, orderStatusCode(err), result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.api == nil {
		http.Error(w, "trader unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if qs := r.URL.Query().Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":      s.api.History(limit),
		"risk_params": s.api.RiskRecords(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("写入应答失败", zap.Error(err))
	}
}

// orderStatusCode 把仪式错误映射到 HTTP 状态码：
// 参数非法 400，仪式中途失败 500，软失败（未就绪等）随 200 的 success=false 返回。
func orderStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ritual.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ritual.ErrIncomplete):
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// withCORS 为本地工具放开跨域限制。
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
