package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 主配置结构
type Config struct {
	Probe       ProbeConfig
	Throughput  ThroughputConfig
	Discover    DiscoverConfig
	Apply       ApplyConfig
	Webhook     WebhookConfig
	Log         LogConfig
	OutputDir   string // 结果文件输出目录
	DBPath      string // SQLite 数据库路径
	ProfilesURL string // 远程 profile 配置地址（watch 模式）
}

// ProbeConfig 延迟探测配置
type ProbeConfig struct {
	Count    int `json:"count"`    // 探测包数量
	Timeout  int `json:"timeout"`  // 单包超时（秒）
	Interval int `json:"interval"` // 包间隔（毫秒）
}

// ThroughputConfig 吞吐量测试配置
type ThroughputConfig struct {
	Trials       int    `json:"trials"`        // 测试轮数
	PayloadBytes int64  `json:"payload_bytes"` // 单轮下载字节上限
	URL          string `json:"url"`           // 下载地址，留空则根据目标推导
	Timeout      int    `json:"timeout"`       // 单轮超时（秒）
}

// DiscoverConfig 路径MTU探测配置
type DiscoverConfig struct {
	Enabled bool `json:"enabled"`
	MinSize int  `json:"min_size"` // 二分下界（字节，含头部）
	MaxSize int  `json:"max_size"` // 二分上界（字节，含头部）
	Timeout int  `json:"timeout"`  // 单包超时（秒）
}

// ApplyConfig profile 参数应用配置
type ApplyConfig struct {
	Mode    string `json:"mode"`    // manual / command / http
	Command string `json:"command"` // command 模式执行的命令
	URL     string `json:"url"`     // http 模式的 reload 地址
	Timeout int    `json:"timeout"` // 应用等待超时（秒）
}

// WebhookConfig Webhook 回调配置
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout int               `json:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Enabled bool
	Level   string
	Path    string
	MaxDays int
}

// Load 从 .env 文件加载基础配置
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}

	cfg.OutputDir = getEnvString("OUTPUT_DIR", "./results")
	cfg.DBPath = getEnvString("DB_PATH", "./data/pathcompare.db")
	cfg.ProfilesURL = os.Getenv("PROFILES_URL")

	// 延迟探测
	cfg.Probe.Count = getEnvInt("PROBE_COUNT", 100)
	cfg.Probe.Timeout = getEnvInt("PROBE_TIMEOUT", 2)
	cfg.Probe.Interval = getEnvInt("PROBE_INTERVAL_MS", 200)

	// 吞吐量测试
	cfg.Throughput.Trials = getEnvInt("THROUGHPUT_TRIALS", 3)
	cfg.Throughput.PayloadBytes = int64(getEnvInt("PAYLOAD_BYTES", 10*1024*1024))
	cfg.Throughput.URL = os.Getenv("PAYLOAD_URL")
	cfg.Throughput.Timeout = getEnvInt("THROUGHPUT_TIMEOUT", 60)

	// 路径MTU探测
	cfg.Discover.Enabled = getEnvBool("DISCOVER_ENABLED", true)
	cfg.Discover.MinSize = getEnvInt("DISCOVER_MIN_SIZE", 576)
	cfg.Discover.MaxSize = getEnvInt("DISCOVER_MAX_SIZE", 9216)
	cfg.Discover.Timeout = getEnvInt("DISCOVER_TIMEOUT", 2)

	// 参数应用
	cfg.Apply.Mode = getEnvString("APPLY_MODE", "manual")
	cfg.Apply.Command = os.Getenv("APPLY_COMMAND")
	cfg.Apply.URL = os.Getenv("APPLY_URL")
	cfg.Apply.Timeout = getEnvInt("APPLY_TIMEOUT", 120)

	// Webhook 配置
	cfg.Webhook.URL = os.Getenv("WEBHOOK_URL")
	cfg.Webhook.Method = getEnvString("WEBHOOK_METHOD", "POST")
	cfg.Webhook.Timeout = getEnvInt("WEBHOOK_TIMEOUT", 10)
	if raw := os.Getenv("WEBHOOK_HEADERS"); raw != "" {
		// JSON 对象，例如 {"Authorization":"Bearer xxx"}
		headers := make(map[string]string)
		if err := json.Unmarshal([]byte(raw), &headers); err == nil {
			cfg.Webhook.Headers = headers
		}
	}

	// 日志配置
	cfg.Log.Enabled = getEnvBool("LOG_ENABLED", true)
	cfg.Log.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Log.Path = getEnvString("LOG_PATH", "./logs/pathcompare.log")
	cfg.Log.MaxDays = getEnvInt("LOG_MAX_DAYS", 30)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
