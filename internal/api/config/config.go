package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig 从文件加载配置，环境变量 FORUM_* 可覆盖同名配置项
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("FORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout_sec", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.index", "logstash-forum")

	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_lifetime", 30)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout_ms", 1000)
	v.SetDefault("redis.read_timeout_ms", 300)
	v.SetDefault("redis.write_timeout_ms", 300)
	v.SetDefault("redis.op_timeout_ms", 200)

	v.SetDefault("ranking.epoch", "weekly")
	v.SetDefault("ranking.reset_spec", "0 0 * * 1")
	v.SetDefault("ranking.timezone", "Asia/Shanghai")
	v.SetDefault("ranking.default_limit", 10)
	v.SetDefault("ranking.max_limit", 100)
	v.SetDefault("ranking.refresh_limit", 100)
	v.SetDefault("ranking.refresh_interval_sec", 30)

	v.SetDefault("reconcile.enable", true)
	v.SetDefault("reconcile.view_sync_spec", "@every 5m")
	v.SetDefault("reconcile.unread_sync_spec", "@every 30m")
	v.SetDefault("reconcile.batch_size", 200)

	v.SetDefault("bootstrap.enable", false)
	v.SetDefault("bootstrap.mode", "fill")
	v.SetDefault("bootstrap.batch_size", 500)
	v.SetDefault("bootstrap.limit", 0)

	v.SetDefault("unread.queue_size", 2048)
	v.SetDefault("unread.workers", 4)
	v.SetDefault("unread.max_retries", 3)
	v.SetDefault("unread.backoff_ms", 100)

	v.SetDefault("kafka.enable", false)
}
