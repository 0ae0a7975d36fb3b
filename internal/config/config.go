// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，敏感字段支持环境变量覆盖
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
	"github.com/caarlos0/env/v11"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName  string `toml:"appName"`  // 应用名称，用于日志标识等
	Host     string `toml:"host"`     // 服务器监听地址，如 "0.0.0.0"
	Port     int    `toml:"port"`     // 服务器监听端口，如 8000
	Mode     string `toml:"mode"`     // 运行模式：dev / release
	ForceTLS bool   `toml:"forceTLS"` // 是否开启 HTTPS 重定向（由 Nginx 终止 TLS 时关闭）
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`                               // MySQL 服务器地址
	Port         int    `toml:"port"`                               // MySQL 端口，默认 3306
	User         string `toml:"user"`                               // 数据库用户名
	Password     string `toml:"password" env:"CHAT_MYSQL_PASSWORD"` // 数据库密码
	DatabaseName string `toml:"databaseName"`                       // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`                               // Redis 服务器地址
	Port     int    `toml:"port"`                               // Redis 端口，默认 6379
	Password string `toml:"password" env:"CHAT_REDIS_PASSWORD"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`                                 // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 配置，仅用于发布在线状态变更事件
type KafkaConfig struct {
	Enabled       bool          `toml:"enabled"`       // 是否发布在线状态事件
	HostPort      string        `toml:"hostPort"`      // Kafka 服务器地址，如 "localhost:9092"
	PresenceTopic string        `toml:"presenceTopic"` // 在线状态事件主题
	Timeout       time.Duration `toml:"timeout"`       // 写超时（秒）
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret" env:"CHAT_JWT_SECRET"` // JWT 签名密钥，建议 32 字符以上
	AccessTokenExpiry int    `toml:"accessTokenExpiry"`            // Access Token 有效期（分钟）
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023
}

// MailConfig SMTP 邮件配置，Host 为空时不发送邮件
type MailConfig struct {
	Host           string `toml:"host"`                              // SMTP 服务器地址
	Port           int    `toml:"port"`                              // SMTP 端口，如 587
	Username       string `toml:"username"`                          // 登录用户名
	Password       string `toml:"password" env:"CHAT_MAIL_PASSWORD"` // 登录密码或授权码
	From           string `toml:"from"`                              // 发件人地址
	TLSPolicy      string `toml:"tlsPolicy"`                         // "mandatory" | "opportunistic" | "none"
	TimeoutSeconds int    `toml:"timeoutSeconds"`                    // 单封邮件发送超时（秒）
}

// Timeout 单封邮件发送超时，未配置时 10 秒
func (c MailConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChatConfig 实时聊天核心配置
type ChatConfig struct {
	BufferMode           string `toml:"bufferMode"`           // 消息缓冲存储："redis" 或 "memory"
	BufferTTLHours       int    `toml:"bufferTTLHours"`       // 房间缓冲过期时间（小时）
	FlushIntervalSeconds int    `toml:"flushIntervalSeconds"` // 缓冲落库周期（秒）
	DispatchPollSeconds  int    `toml:"dispatchPollSeconds"`  // 定时任务轮询周期（秒）
	HistoryDefaultLimit  int    `toml:"historyDefaultLimit"`  // 历史消息默认条数
	HistoryMaxLimit      int    `toml:"historyMaxLimit"`      // 历史消息最大条数
	AllowAnonymous       bool   `toml:"allowAnonymous"`       // 是否允许无 Token 的匿名连接
	FlushWorkers         int    `toml:"flushWorkers"`         // 后台 Worker 数量
	FlushQueueSize       int    `toml:"flushQueueSize"`       // 后台任务队列大小
}

// BufferTTL 房间缓冲过期时间
func (c ChatConfig) BufferTTL() time.Duration {
	return time.Duration(c.BufferTTLHours) * time.Hour
}

// FlushInterval 缓冲落库周期
func (c ChatConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// DispatchPollInterval 定时任务轮询周期
func (c ChatConfig) DispatchPollInterval() time.Duration {
	return time.Duration(c.DispatchPollSeconds) * time.Second
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`      // 主配置
	MysqlConfig     `toml:"mysqlConfig"`     // MySQL 配置
	RedisConfig     `toml:"redisConfig"`     // Redis 配置
	LogConfig       `toml:"logConfig"`       // 日志配置
	KafkaConfig     `toml:"kafkaConfig"`     // Kafka 配置
	JWTConfig       `toml:"jwtConfig"`       // JWT 配置
	SnowflakeConfig `toml:"snowflakeConfig"` // 雪花算法配置
	MailConfig      `toml:"mailConfig"`      // 邮件配置
	ChatConfig      `toml:"chatConfig"`      // 聊天核心配置
}

// searchPaths 候选配置文件路径（优先加载本地配置）
var searchPaths = []string{
	"configs/config_local.toml",       // 本地开发配置（优先）
	"configs/config.toml",             // 默认配置
	"../../configs/config_local.toml", // 从子目录运行时的路径
	"../../configs/config.toml",       // 从子目录运行时的路径
}

// config 全局配置单例，延迟加载
var config *Config

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		MainConfig: MainConfig{AppName: "chat_relay_server", Host: "0.0.0.0", Port: 8000, Mode: "dev"},
		LogConfig:  LogConfig{LogPath: "./logs", Level: "info"},
		KafkaConfig: KafkaConfig{
			PresenceTopic: "presence",
			Timeout:       1,
		},
		MailConfig:      MailConfig{Port: 587, TLSPolicy: "opportunistic", TimeoutSeconds: 10},
		JWTConfig:       JWTConfig{AccessTokenExpiry: 60},
		SnowflakeConfig: SnowflakeConfig{MachineID: 1},
		ChatConfig: ChatConfig{
			BufferMode:           "redis",
			BufferTTLHours:       24,
			FlushIntervalSeconds: 300,
			DispatchPollSeconds:  15,
			HistoryDefaultLimit:  50,
			HistoryMaxLimit:      100,
			FlushWorkers:         4,
			FlushQueueSize:       1024,
		},
	}
}

// LoadFile 从指定路径加载配置，未出现在文件中的字段保留默认值
func LoadFile(path string) (*Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := applyEnv(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// Load 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func Load() (*Config, error) {
	for _, path := range searchPaths {
		if conf, err := LoadFile(path); err == nil {
			return conf, nil
		}
	}
	return nil, fmt.Errorf("could not find configuration file in any of the search paths")
}

// applyEnv 用环境变量覆盖敏感字段
func applyEnv(conf *Config) error {
	for _, target := range []any{&conf.MysqlConfig, &conf.RedisConfig, &conf.JWTConfig, &conf.MailConfig} {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("parse env overrides: %w", err)
		}
	}
	return nil
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，找不到文件时使用默认值
func GetConfig() *Config {
	if config == nil {
		conf, err := Load()
		if err != nil {
			conf = Default()
			_ = applyEnv(conf)
		}
		config = conf
	}
	return config
}
