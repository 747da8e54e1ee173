package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了桥接器运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	Cloud    CloudConfig    `mapstructure:"cloud"`
	Server   ServerConfig   `mapstructure:"server"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// TerminalConfig 描述交易终端窗口的识别方式。
type TerminalConfig struct {
	// Titles 为窗口标题匹配子串列表，按顺序尝试。
	Titles []string `mapstructure:"titles"`
}

// CloudConfig 描述云端 WebSocket 接入参数。
type CloudConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	URL               string        `mapstructure:"url"`
	Source            string        `mapstructure:"source"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay"`
	MaxReconnects     int           `mapstructure:"max_reconnects"`
}

// ServerConfig 控制本地 HTTP 服务。
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// ArtifactConfig 管理导出文件的目录与过期策略。
type ArtifactConfig struct {
	WorkDir    string   `mapstructure:"work_dir"`
	ExtraDirs  []string `mapstructure:"extra_dirs"`
	CutoffHour int      `mapstructure:"cutoff_hour"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if len(c.Terminal.Titles) == 0 {
		err = multierr.Append(err, errors.New("terminal.titles 至少包含一个窗口标题"))
	}
	if c.Cloud.Enabled {
		if c.Cloud.URL == "" {
			err = multierr.Append(err, errors.New("cloud.url 不能为空"))
		}
		if c.Cloud.Source == "" {
			err = multierr.Append(err, errors.New("cloud.source 不能为空"))
		}
		if c.Cloud.HeartbeatInterval <= 0 {
			err = multierr.Append(err, errors.New("cloud.heartbeat_interval 必须大于0"))
		}
		if c.Cloud.ReconnectDelay <= 0 || c.Cloud.ReconnectMaxDelay <= 0 {
			err = multierr.Append(err, errors.New("cloud.reconnect 延迟必须为正"))
		}
		if c.Cloud.ReconnectDelay > c.Cloud.ReconnectMaxDelay {
			err = multierr.Append(err, errors.New("cloud.reconnect_delay 不能大于 reconnect_max_delay"))
		}
		if c.Cloud.MaxReconnects <= 0 {
			err = multierr.Append(err, errors.New("cloud.max_reconnects 必须大于0"))
		}
	}
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
		}
	}
	if c.Artifact.CutoffHour < 0 || c.Artifact.CutoffHour > 23 {
		err = multierr.Append(err, errors.New("artifact.cutoff_hour 必须位于[0,23]"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
