package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Kind 标识导出数据的种类。
type Kind string

const (
	KindHoldings Kind = "holdings"
	KindTrades   Kind = "trades"
	KindOrders   Kind = "orders"
)

// ErrMissing 表示导出仪式完成但宽限期内未发现对应的文件。
var ErrMissing = errors.New("artifact: 未发现导出文件")

// kindLabels 为券商终端使用的固定中文文件名前缀。
var kindLabels = map[Kind]string{
	KindHoldings: "持仓数据",
	KindTrades:   "成交数据",
	KindOrders:   "委托数据",
}

// Label 返回该种类的中文文件名前缀。
func (k Kind) Label() string {
	return kindLabels[k]
}

// Valid 判断是否为已知种类。
func (k Kind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// Kinds 返回全部导出种类，顺序固定。
func Kinds() []Kind {
	return []Kind{KindHoldings, KindTrades, KindOrders}
}

// Filename 按 {中文前缀}_{YYYYMMDD}_{HHMMSS}.csv 生成确定性文件名。
// 时间精度为秒，引擎靠保存后 1~2 秒的 settle 保证相邻导出不重名。
func Filename(kind Kind, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind.Label(), t.Format("20060102_150405"))
}

// Artifact 描述一个已落盘的导出文件。
type Artifact struct {
	Kind    Kind
	Path    string
	ModTime time.Time
}

// Harvester 独占管理磁盘上的导出文件集合：
// 发现、按日截止时间清理、解析。
type Harvester struct {
	workDir    string
	extraDirs  []string
	cutoffHour int
	logger     *zap.Logger
}

// NewHarvester 创建文件收割器。extraDirs 为额外的候选目录
// （如用户的 Documents、Desktop），终端的保存对话框可能落在其中。
func NewHarvester(workDir string, extraDirs []string, cutoffHour int, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workDir == "" {
		workDir = "."
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		cutoffHour = 15
	}
	return &Harvester{
		workDir:    workDir,
		extraDirs:  extraDirs,
		cutoffHour: cutoffHour,
		logger:     logger,
	}
}

// WorkDir 返回导出文件的主目录。
func (h *Harvester) WorkDir() string {
	return h.workDir
}

// dirs 返回按优先级排列且去重后的候选目录。
// workDir 或 extraDirs 可能与 Documents/Desktop 重合，重复目录会让
// 清理阶段对同一文件删两次并留下无谓的告警。
func (h *Harvester) dirs() []string {
	candidates := []string{h.workDir}
	candidates = append(candidates, h.extraDirs...)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "Documents"), filepath.Join(home, "Desktop"))
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, dir := range candidates {
		clean := filepath.Clean(dir)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// Latest 在候选目录里查找该种类最新的导出文件（按 mtime）。
func (h *Harvester) Latest(kind Kind) (*Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("artifact: 未知导出种类 %q", kind)
	}

	var newest *Artifact
	for _, dir := range h.dirs() {
		matches, err := filepath.Glob(filepath.Join(dir, kind.Label()+"_*.csv"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if newest == nil || info.ModTime().After(newest.ModTime) {
				newest = &Artifact{Kind: kind, Path: path, ModTime: info.ModTime()}
			}
		}
	}

	if newest == nil {
		return nil, ErrMissing
	}
	return newest, nil
}

// Cutoff 计算当日的过期截止时间：当天本地 cutoffHour 点；
// 若当前时间尚未到达，则为昨天的同一时刻。
// 含义是"早于最近一次收盘的导出已经过期"。
func (h *Harvester) Cutoff(now time.Time) time.Time {
	cut := time.Date(now.Year(), now.Month(), now.Day(), h.cutoffHour, 0, 0, 0, now.Location())
	if now.Before(cut) {
		cut = cut.AddDate(0, 0, -1)
	}
	return cut
}

// CleanupStale 删除 mtime 严格早于截止时间的导出文件，返回删除数量。
// 必须在终端锁内调用，避免与并发导出竞争。
func (h *Harvester) CleanupStale(now time.Time) (int, error) {
	cut := h.Cutoff(now)
	deleted := 0

	for _, dir := range h.dirs() {
		for _, kind := range Kinds() {
			matches, err := filepath.Glob(filepath.Join(dir, kind.Label()+"_*.csv"))
			if err != nil {
				continue
			}
			for _, path := range matches {
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if !info.ModTime().Before(cut) {
					continue
				}
				if err := os.Remove(path); err != nil {
					h.logger.Warn("删除过期导出文件失败", zap.String("path", path), zap.Error(err))
					continue
				}
				deleted++
				h.logger.Info("已删除过期导出文件",
					zap.String("path", path),
					zap.Time("mtime", info.ModTime()),
					zap.Time("cutoff", cut),
				)
			}
		}
	}

	return deleted, nil
}
