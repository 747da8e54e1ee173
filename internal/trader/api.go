package trader

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"broker-bridge/internal/artifact"
	"broker-bridge/internal/input"
	"broker-bridge/internal/ritual"
	"broker-bridge/internal/terminal"
)

// artifactGrace 为导出仪式结束后等待文件落盘的宽限期。
const artifactGrace = 5 * time.Second

// API 是暴露给所有调用方（云端中继、本地 HTTP、REST 适配层）的统一门面。
// 终端是单例且不可重入的资源：mu 即"终端锁"，每个仪式全程持有，
// 绝不允许两个仪式的按键窗口交叠。
type API struct {
	mu sync.Mutex // 终端锁

	drv       input.Driver
	ctrl      *terminal.Controller
	engine    *ritual.Engine
	harvester *artifact.Harvester
	logger    *zap.Logger

	history *History
	risk    *riskLog

	stateMu       sync.Mutex
	startedAt     time.Time
	lastHeartbeat time.Time
	lastExport    time.Time

	titleHint string
}

// New 创建交易门面。titleHint 为判断前台是否为交易软件的标题子串。
func New(drv input.Driver, ctrl *terminal.Controller, engine *ritual.Engine, harvester *artifact.Harvester, titleHint string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		drv:       drv,
		ctrl:      ctrl,
		engine:    engine,
		harvester: harvester,
		logger:    logger,
		history:   NewHistory(defaultHistoryCap),
		risk:      newRiskLog(defaultHistoryCap),
		startedAt: time.Now(),
		titleHint: titleHint,
	}
}

// Buy 市价买入。price 仅为参考值，终端默认填充市价。
func (a *API) Buy(code string, quantity int, price string) (ritual.OrderOutcome, error) {
	return a.placeOrder(ritual.OrderRequest{Side: ritual.SideBuy, Code: code, Quantity: quantity, Price: price})
}

// Sell 市价卖出。
func (a *API) Sell(code string, quantity int, price string) (ritual.OrderOutcome, error) {
	return a.placeOrder(ritual.OrderRequest{Side: ritual.SideSell, Code: code, Quantity: quantity, Price: price})
}

// PlaceOrder 按请求方向下单。
func (a *API) PlaceOrder(req ritual.OrderRequest) (ritual.OrderOutcome, error) {
	return a.placeOrder(req)
}

func (a *API) placeOrder(req ritual.OrderRequest) (ritual.OrderOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var outcome ritual.OrderOutcome
	var err error
	if req.Side == ritual.SideSell {
		outcome, err = a.engine.Sell(req)
	} else {
		outcome, err = a.engine.Buy(req)
	}

	a.history.Add(outcome)
	return outcome, err
}

// ExportReport 汇总一次导出请求的各种类结果。
type ExportReport struct {
	// Results 按种类给出仪式是否完成。
	Results map[artifact.Kind]bool `json:"results"`
	// Artifacts 为宽限期内确认落盘的文件路径。
	Artifacts map[artifact.Kind]string `json:"artifacts,omitempty"`
	// Missing 为仪式完成但未见文件的种类（导出成功、零行数据的软失败）。
	Missing []artifact.Kind `json:"missing,omitempty"`
}

// Export 执行导出仪式。kind 为 holdings/trades/orders/all。
// 过期文件在仪式入口、终端锁内清理，避免与并发导出竞争。
func (a *API) Export(kind string) (ExportReport, error) {
	kinds, err := resolveKinds(kind)
	if err != nil {
		return ExportReport{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.harvester.CleanupStale(time.Now()); err != nil {
		a.logger.Warn("清理过期导出失败", zap.Error(err))
	}

	report := ExportReport{
		Results:   make(map[artifact.Kind]bool, len(kinds)),
		Artifacts: make(map[artifact.Kind]string),
	}

	var firstErr error
	for _, k := range kinds {
		started := time.Now()
		outcome, exportErr := a.engine.Export(k)
		report.Results[k] = outcome.Success
		if exportErr != nil {
			if firstErr == nil {
				firstErr = exportErr
			}
			continue
		}

		art, waitErr := a.harvester.WaitFor(k, started, artifactGrace)
		if waitErr != nil {
			// 仪式成功但文件缺席：按软失败上报，不算错误。
			a.logger.Warn("导出完成但未发现文件",
				zap.String("kind", string(k)),
				zap.String("filename", outcome.Filename),
			)
			report.Missing = append(report.Missing, k)
			continue
		}
		report.Artifacts[k] = art.Path
	}

	a.stateMu.Lock()
	a.lastExport = time.Now()
	a.stateMu.Unlock()

	return report, firstErr
}

// PortfolioResult 为持仓查询结果。
type PortfolioResult struct {
	Rows    []map[string]string `json:"data"`
	Warning string              `json:"warning,omitempty"`
}

// Portfolio 导出持仓并解析为行记录。表头保持券商原始中文标签。
// 导出成功但无文件/无数据时返回空行集与警告，而非错误。
func (a *API) Portfolio() (PortfolioResult, error) {
	report, err := a.Export(string(artifact.KindHoldings))
	if err != nil {
		return PortfolioResult{}, err
	}

	path, ok := report.Artifacts[artifact.KindHoldings]
	if !ok {
		return PortfolioResult{Rows: []map[string]string{}, Warning: "导出完成，未发现持仓文件"}, nil
	}

	table, err := artifact.ReadCSV(path)
	if err != nil {
		return PortfolioResult{Rows: []map[string]string{}, Warning: fmt.Sprintf("持仓文件解析失败: %v", err)}, nil
	}

	rows := table.Maps()
	if len(rows) == 0 {
		return PortfolioResult{Rows: []map[string]string{}, Warning: "导出完成，无持仓数据"}, nil
	}
	return PortfolioResult{Rows: rows}, nil
}

// GetLatestArtifact 返回该种类最新的导出文件。
func (a *API) GetLatestArtifact(kind artifact.Kind) (*artifact.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.harvester.Latest(kind)
}

// GetBalance 执行余额读取仪式。
func (a *API) GetBalance() (artifact.BalanceSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Balance()
}

// CleanupStaleArtifacts 删除早于当日截止时间的导出文件，返回删除数量。
func (a *API) CleanupStaleArtifacts() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.harvester.CleanupStale(time.Now())
}

// Status 为本地健康状态。
type Status struct {
	Running               bool      `json:"running"`
	TraderAPIAvailable    bool      `json:"trader_api_available"`
	TradingSoftwareActive bool      `json:"trading_software_active"`
	LastHeartbeat         time.Time `json:"last_heartbeat_ts"`
	TradeHistoryCount     int       `json:"trade_history_count"`
	LastExport            time.Time `json:"last_export_ts"`
	UptimeSeconds         float64   `json:"uptime_s"`
}

// GetStatus 返回健康状态。幂等、无副作用：只读取前台窗口标题，不注入任何按键，
// 也不等待终端锁，保证仪式执行期间 /status 依然可用。
func (a *API) GetStatus() Status {
	a.stateMu.Lock()
	status := Status{
		Running:            true,
		TraderAPIAvailable: a.drv != nil,
		LastHeartbeat:      a.lastHeartbeat,
		LastExport:         a.lastExport,
		UptimeSeconds:      time.Since(a.startedAt).Seconds(),
	}
	a.stateMu.Unlock()

	status.TradeHistoryCount = a.history.Len()

	if a.drv != nil {
		if win, err := a.drv.CurrentFocus(); err == nil {
			status.TradingSoftwareActive = a.titleHint != "" && strings.Contains(win.Title, a.titleHint)
		}
	}

	return status
}

// MarkHeartbeat 由中继在每次心跳时调用。
func (a *API) MarkHeartbeat(t time.Time) {
	a.stateMu.Lock()
	a.lastHeartbeat = t
	a.stateMu.Unlock()
}

// History 返回最新在前的订单记录。
func (a *API) History(limit int) []ritual.OrderOutcome {
	return a.history.List(limit)
}

// SetRiskParams 记录一次风控参数下发。核心只保存与上报，不执行风控。
func (a *API) SetRiskParams(p RiskParams) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	a.risk.add(p)
}

// RiskRecords 返回全部风控参数记录。
func (a *API) RiskRecords() []RiskParams {
	return a.risk.list()
}

// resolveKinds 解析导出种类参数，"all" 展开为全部种类。
func resolveKinds(kind string) ([]artifact.Kind, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "all" {
		return artifact.Kinds(), nil
	}
	ak := artifact.Kind(k)
	if !ak.Valid() {
		return nil, fmt.Errorf("%w: 未知导出种类 %q", ritual.ErrInvalidRequest, kind)
	}
	return []artifact.Kind{ak}, nil
}
