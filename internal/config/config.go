package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "bridge"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	// 常见券商下单终端的标题变体，按出现频率排序。
	v.SetDefault("terminal.titles", []string{
		"网上股票交易系统5.0",
		"网上股票交易系统",
		"通达信网上交易",
	})

	v.SetDefault("cloud.enabled", true)
	v.SetDefault("cloud.url", "ws://localhost:9000/ws")
	v.SetDefault("cloud.source", "local_trading_agent")
	v.SetDefault("cloud.heartbeat_interval", "30s")
	v.SetDefault("cloud.reconnect_delay", "5s")
	v.SetDefault("cloud.reconnect_max_delay", "60s")
	v.SetDefault("cloud.max_reconnects", 10)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8888)

	v.SetDefault("artifact.work_dir", ".")
	v.SetDefault("artifact.extra_dirs", []string{})
	v.SetDefault("artifact.cutoff_hour", 15)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout", "logs/bridge.log"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
