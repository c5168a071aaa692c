package config

// Config 配置主体
type Config struct {
	Server            ServerConfig      `mapstructure:"server"`
	Log               LogConfig         `mapstructure:"log"`
	DB                DBConfig          `mapstructure:"database"`
	Redis             RedisConfig       `mapstructure:"redis"`
	JWT               JWTConfig         `mapstructure:"jwt"`
	Ranking           RankingConfig     `mapstructure:"ranking"`
	Reconcile         ReconcileConfig   `mapstructure:"reconcile"`
	Bootstrap         BootstrapConfig   `mapstructure:"bootstrap"`
	Unread            UnreadConfig      `mapstructure:"unread"`
	Kafka             KafkaConfig       `mapstructure:"kafka"`
	KafkaPostConsumer KafkaPostConsumer `mapstructure:"kafka_post_consumer"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// debug / release / test
	Mode               string   `mapstructure:"mode"`
	AllowOrigins       []string `mapstructure:"allow_origins"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`
}

// LogConfig 日志配置，RemoteAddr 为空时只输出到 stdout
type LogConfig struct {
	Level      string `mapstructure:"level"`
	RemoteAddr string `mapstructure:"remote_addr"`
	Index      string `mapstructure:"index"`
	Token      string `mapstructure:"token"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	DialTimeout  int    `mapstructure:"dial_timeout_ms"`
	ReadTimeout  int    `mapstructure:"read_timeout_ms"`
	WriteTimeout int    `mapstructure:"write_timeout_ms"`
	// OpTimeout 单次缓存操作的上限，超时按失败处理并走数据库降级
	OpTimeout int `mapstructure:"op_timeout_ms"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// RankingConfig 热榜配置
type RankingConfig struct {
	Epoch              string `mapstructure:"epoch"`
	ResetSpec          string `mapstructure:"reset_spec"`
	Timezone           string `mapstructure:"timezone"`
	DefaultLimit       int    `mapstructure:"default_limit"`
	MaxLimit           int    `mapstructure:"max_limit"`
	RefreshLimit       int    `mapstructure:"refresh_limit"`
	RefreshIntervalSec int    `mapstructure:"refresh_interval_sec"`
}

// ReconcileConfig 回写任务配置
type ReconcileConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ViewSyncSpec   string `mapstructure:"view_sync_spec"`
	UnreadSyncSpec string `mapstructure:"unread_sync_spec"`
	BatchSize      int    `mapstructure:"batch_size"`
}

// BootstrapConfig 启动预热配置
type BootstrapConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Mode      string `mapstructure:"mode"` // fill | rebuild
	BatchSize int    `mapstructure:"batch_size"`
	Limit     int    `mapstructure:"limit"` // rebuild 模式下重建的帖子数，0 为全部
}

// UnreadConfig 未读数异步写入配置
type UnreadConfig struct {
	QueueSize  int `mapstructure:"queue_size"`
	Workers    int `mapstructure:"workers"`
	MaxRetries int `mapstructure:"max_retries"`
	BackoffMs  int `mapstructure:"backoff_ms"`
}

type KafkaConfig struct {
	Enable   bool           `mapstructure:"enable"`
	ClientID string         `mapstructure:"client_id"`
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
	// newest | oldest
	InitialOffset string `mapstructure:"initial_offset"`
}

type KafkaPostConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}
