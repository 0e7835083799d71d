// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Retention     RetentionConfig     `mapstructure:"retention"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
	// Query 是 AI 生成 SQL 的执行目标（业务库），建议使用只读账号。
	Query QueryDBConfig `mapstructure:"query"`
}

// MySQLConfig 存储会话库（chat_sessions / chat_messages）的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueryDBConfig 业务库连接配置。Driver 取值 mysql 或 pgx。
type QueryDBConfig struct {
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	AuditTopic string `mapstructure:"audit_topic"`
	GroupID    string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses  string `mapstructure:"addresses"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	AuditIndex string `mapstructure:"audit_index"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	// Provider: gemini | openai | deepseek
	Provider        string              `mapstructure:"provider"`
	APIKey          string              `mapstructure:"api_key"`
	BaseURL         string              `mapstructure:"base_url"`
	Model           string              `mapstructure:"model"`
	ClassifierModel string              `mapstructure:"classifier_model"`
	Generation      LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// AssistantConfig 对话查询引擎的参数。
type AssistantConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	MaxRows      int           `mapstructure:"max_rows"`
	// Dialect 写入系统提示，告诉模型生成哪种 SQL 方言：mysql | postgres
	Dialect string `mapstructure:"dialect"`
}

// RetentionConfig 会话保留策略。Days <= 0 表示不清理。
type RetentionConfig struct {
	Days int    `mapstructure:"days"`
	Cron string `mapstructure:"cron"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量 SHOP_<SECTION>_<KEY> 可覆盖文件中的值，例如 SHOP_LLM_API_KEY。
func Init(configPath string) {
	if err := Load(configPath, &Conf); err != nil {
		panic(err)
	}
}

// Load 读取配置文件到 out，并填充默认值。
func Load(configPath string, out *Config) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.query.driver", "mysql")
	v.SetDefault("database.query.max_open_conns", 10)
	v.SetDefault("database.query.timeout", 30*time.Second)
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("kafka.audit_topic", "query-audit")
	v.SetDefault("kafka.group_id", "shop-assistant-audit")
	v.SetDefault("elasticsearch.audit_index", "query_audit")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-1.5-pro-latest")
	v.SetDefault("llm.classifier_model", "gemini-1.5-flash-latest")
	v.SetDefault("assistant.max_attempts", 5)
	v.SetDefault("assistant.retry_backoff", 500*time.Millisecond)
	v.SetDefault("assistant.max_rows", 1000)
	v.SetDefault("assistant.dialect", "mysql")
	v.SetDefault("retention.cron", "0 3 * * *")
}
