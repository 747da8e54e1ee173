package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"broker-bridge/internal/config"
	"broker-bridge/internal/trader"
)

// Version 为注册信封上报的代理版本。
const Version = "1.0.0"

// capabilities 为本地代理对云端声明的能力集。
var capabilities = []string{"trade", "export", "portfolio", "status", "balance"}

// Client 维护到云端的长连 WebSocket 会话：
// 注册、读循环分发、心跳、指数退避重连。任一时刻至多一个活跃会话。
type Client struct {
	cfg        config.CloudConfig
	dispatcher *Dispatcher
	api        *trader.API
	logger     *zap.Logger

	writeMu sync.Mutex
}

// NewClient 创建云端中继客户端。
func NewClient(cfg config.CloudConfig, dispatcher *Dispatcher, api *trader.API, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		dispatcher: dispatcher,
		api:        api,
		logger:     logger,
	}
}

// Run 阻塞运行连接管理循环，直到 ctx 取消或连续重连超限。
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	delay := c.cfg.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempts++
			if attempts > c.cfg.MaxReconnects {
				return fmt.Errorf("relay: 连续重连 %d 次失败，终止: %w", attempts-1, err)
			}
			c.logger.Warn("连接云端失败，等待重连",
				zap.String("url", c.cfg.URL),
				zap.Int("attempt", attempts),
				zap.Duration("wait", delay),
				zap.Error(err),
			)
			if !sleepCtx(ctx, delay) {
				return nil
			}
			delay *= 2
			if delay > c.cfg.ReconnectMaxDelay {
				delay = c.cfg.ReconnectMaxDelay
			}
			continue
		}

		attempts = 0
		delay = c.cfg.ReconnectDelay
		c.logger.Info("已连接云端", zap.String("url", c.cfg.URL))

		serveErr := c.serve(ctx, conn)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("会话结束，准备重连", zap.Error(serveErr))
		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			return nil
		}
	}
}

// serve 驱动单个会话：先注册，再并行地读命令与发心跳。
// 命令分发是同步阻塞的——仪式执行期间不再读取新命令，
// 终端串行化由此天然成立。
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	// 注册信封必须先于任何其他出站帧。
	register, err := NewEnvelope(TypeRegister, c.cfg.Source, "cloud", RegisterPayload{
		ServiceType:  "trading_agent",
		Capabilities: capabilities,
		Version:      Version,
	})
	if err != nil {
		return err
	}
	if err := c.send(conn, register); err != nil {
		return fmt.Errorf("relay: 发送注册信封失败: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 读超时依靠心跳间隔的 ping/pong 维持。
	readWait := 2*c.cfg.HeartbeatInterval + 10*time.Second
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	go c.heartbeatLoop(sessionCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var cmd Envelope
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.logger.Warn("丢弃无法解析的信封", zap.Error(err))
			continue
		}

		resp, events := c.dispatcher.Handle(cmd)
		if err := c.send(conn, resp); err != nil {
			// 连接已死，应答按约定丢弃；仪式本身已运行完成。
			c.logger.Warn("应答发送失败，已丢弃", zap.String("id", cmd.ID), zap.Error(err))
			return err
		}
		for _, ev := range events {
			if err := c.send(conn, ev); err != nil {
				return err
			}
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			hb, err := NewEnvelope(TypeHeartbeat, c.cfg.Source, "cloud", AlivePayload{
				Status:    "alive",
				Timestamp: now,
			})
			if err != nil {
				continue
			}
			if err := c.send(conn, hb); err != nil {
				c.logger.Warn("心跳发送失败", zap.Error(err))
				return
			}
			c.writeMu.Lock()
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
			c.api.MarkHeartbeat(now)
		}
	}
}

// send 序列化并发送一个信封。帧为 UTF-8 JSON，以换行结尾。
func (c *Client) send(conn *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: 序列化信封失败: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// sleepCtx 等待 d，ctx 取消时返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
