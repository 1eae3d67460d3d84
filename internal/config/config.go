package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"scoring-service/internal/scoring"
)

// Config 应用程序配置
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Storage  StorageConfig
	JWT      JWTConfig
	Log      LogConfig
	Clients  ClientsConfig
	Pipeline PipelineConfig
	Scoring  scoring.Thresholds
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// StorageConfig MinIO存储配置
type StorageConfig struct {
	Endpoint   string
	BucketName string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	JSONFormat bool `mapstructure:"json_format"`
}

// ClientsConfig 外部协作方地址配置
type ClientsConfig struct {
	FrameScorerURL        string `mapstructure:"frame_scorer_url"`
	NarrativeGeneratorURL string `mapstructure:"narrative_generator_url"`
	CreditLedgerURL       string `mapstructure:"credit_ledger_url"`
}

// PipelineConfig 评分任务运行参数
type PipelineConfig struct {
	JobTimeout       time.Duration `mapstructure:"job_timeout"`       // 整个任务的墙钟预算
	StageRetries     int           `mapstructure:"stage_retries"`     // 阶段级自动重试次数
	FrameConcurrency int           `mapstructure:"frame_concurrency"` // 逐帧评分并发上限
	FrameTimeout     time.Duration `mapstructure:"frame_timeout"`     // 单帧评分超时
	BackoffBase      time.Duration `mapstructure:"backoff_base"`      // 退避基数
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`       // 退避上限
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件错误: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件错误: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.JWT.Secret == "" {
		config.JWT.Secret = "default-jwt-secret-key"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Pipeline.JobTimeout <= 0 {
		config.Pipeline.JobTimeout = 5 * time.Minute
	}
	if config.Pipeline.StageRetries <= 0 {
		config.Pipeline.StageRetries = 2
	}
	if config.Pipeline.FrameConcurrency <= 0 {
		config.Pipeline.FrameConcurrency = 4
	}
	if config.Pipeline.FrameTimeout <= 0 {
		config.Pipeline.FrameTimeout = 30 * time.Second
	}
	if config.Pipeline.BackoffBase <= 0 {
		config.Pipeline.BackoffBase = 2 * time.Second
	}
	if config.Pipeline.BackoffCap <= 0 {
		config.Pipeline.BackoffCap = 30 * time.Second
	}
	if len(config.Scoring.PlayVolume) == 0 {
		config.Scoring = scoring.DefaultThresholds()
	}
}
