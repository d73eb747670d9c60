// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Codec      CodecConfig      `mapstructure:"codec"`
	Session    SessionConfig    `mapstructure:"session"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Replay     ReplayConfig     `mapstructure:"replay"`
}

// StoreConfig 录制条目存储配置
type StoreConfig struct {
	Type     string         `mapstructure:"type"` // memory | file | redis | postgres | sqlite | badger
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Badger   BadgerConfig   `mapstructure:"badger"`
}

// RedisConfig Redis 存储配置
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"` // 空则默认 callreplay
}

// PostgresConfig Postgres 存储配置
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	PoolSize int    `mapstructure:"pool_size"` // <=0 使用 pgxpool 默认值
}

// SQLiteConfig SQLite 存储配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"` // 文件路径或 ":memory:"
}

// BadgerConfig Badger 存储配置
type BadgerConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

// CodecConfig 参数与返回值序列化配置
type CodecConfig struct {
	Type string `mapstructure:"type"` // json | bson | cbor
}

// SessionConfig 会话配置；file 存储以文件名作为会话 id
type SessionConfig struct {
	RecordID   string `mapstructure:"record_id"`
	ReplayID   string `mapstructure:"replay_id"`
	RecordFile string `mapstructure:"record_file"`
	ReplayFile string `mapstructure:"replay_file"`
}

// ArchiveConfig 会话文件归档配置
type ArchiveConfig struct {
	Type     string `mapstructure:"type"` // fs | s3 | gcs
	Dir      string `mapstructure:"dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // S3 兼容服务地址，可选
}

// ReplayConfig 重放行为配置
type ReplayConfig struct {
	SkipExitOnMismatch bool `mapstructure:"skip_exit_on_mismatch"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", "callreplay")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.pool_size", 0)
	v.SetDefault("store.sqlite.path", "callreplay.db")
	v.SetDefault("store.badger.dir", "callreplay-badger")
	v.SetDefault("store.badger.in_memory", false)
	v.SetDefault("codec.type", "json")
	v.SetDefault("session.record_id", "")
	v.SetDefault("session.replay_id", "")
	v.SetDefault("session.record_file", "")
	v.SetDefault("session.replay_file", "")
	v.SetDefault("archive.type", "fs")
	v.SetDefault("archive.dir", "sessions")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("monitoring.prometheus.enable", false)
	v.SetDefault("monitoring.prometheus.port", 9090)
	v.SetDefault("monitoring.tracing.enable", false)
	v.SetDefault("monitoring.tracing.service_name", "callreplay")
	v.SetDefault("monitoring.tracing.export_endpoint", "localhost:4318")
	v.SetDefault("monitoring.tracing.insecure", true)
	v.SetDefault("replay.skip_exit_on_mismatch", false)
}

// LoadConfig 加载配置文件；configPath 为空时仅使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	// 替换环境变量
	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中形如 ${VAR} 的密钥
func replaceEnvVars(config *Config) {
	config.Store.Postgres.DSN = expandEnv(config.Store.Postgres.DSN)
	config.Store.Redis.Password = expandEnv(config.Store.Redis.Password)
	config.Archive.Endpoint = expandEnv(config.Archive.Endpoint)
}

func expandEnv(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return value
}
