package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"broker-bridge/internal/artifact"
	"broker-bridge/internal/config"
	"broker-bridge/internal/input"
	"broker-bridge/internal/relay"
	"broker-bridge/internal/ritual"
	"broker-bridge/internal/terminal"
	"broker-bridge/internal/trader"
)

// 过期件清理的巡检间隔。
const cleanupInterval = time.Hour

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run 装配驱动与各服务并阻塞运行，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("桥接器已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.Strings("titles", a.cfg.Terminal.Titles),
	)

	drv, err := input.NewSystemDriver()
	if err != nil {
		return fmt.Errorf("初始化输入驱动失败: %w", err)
	}

	ctrl := terminal.NewController(drv, a.cfg.Terminal.Titles, a.logger)
	if _, err := ctrl.Resolve(); err != nil {
		a.logger.Warn("启动时未找到交易终端窗口，稍后将重试", zap.Error(err))
	} else {
		a.logger.Info("已定位交易终端窗口", zap.String("title", ctrl.Title()))
	}

	engine := ritual.NewEngine(drv, ctrl, a.logger)
	harvester := artifact.NewHarvester(a.cfg.Artifact.WorkDir, a.cfg.Artifact.ExtraDirs, a.cfg.Artifact.CutoffHour, a.logger)

	titleHint := ""
	if len(a.cfg.Terminal.Titles) > 0 {
		titleHint = a.cfg.Terminal.Titles[0]
	}
	api := trader.New(drv, ctrl, engine, harvester, titleHint, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Cloud.Enabled {
		dispatcher := relay.NewDispatcher(api, a.cfg.Cloud.Source, a.logger)
		client := relay.NewClient(a.cfg.Cloud, dispatcher, api, a.logger)
		g.Go(func() error {
			return client.Run(gctx)
		})
	}

	if a.cfg.Server.Enabled {
		srv := relay.NewServer(api, a.cfg.Server.Host, a.cfg.Server.Port, a.logger)
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("启动本地服务失败: %w", err)
		}
	}

	g.Go(func() error {
		return a.cleanupLoop(gctx, api)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

// cleanupLoop 启动时先清理一次过期导出件，之后每小时巡检。
func (a *App) cleanupLoop(ctx context.Context, api *trader.API) error {
	if n, err := api.CleanupStaleArtifacts(); err != nil {
		a.logger.Warn("清理过期导出件失败", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("已清理过期导出件", zap.Int("count", n))
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := api.CleanupStaleArtifacts(); err != nil {
				a.logger.Warn("清理过期导出件失败", zap.Error(err))
			} else if n > 0 {
				a.logger.Info("已清理过期导出件", zap.Int("count", n))
			}
		}
	}
}
