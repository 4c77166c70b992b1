package config

import (
	"strings"
)

// Config 风险评分引擎配置
// 规格范围（温度/流量/扫描速度）因工厂而异，全部可由环境变量覆盖
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 趋势估计配置
	Trend struct {
		WindowSize    int     // 滚动窗口容量（样本数），默认 20
		MinSamples    int     // 置信度有效的最小样本数，默认 2
		DriftDeadband float64 // 漂移死区，|v| 低于该值视为传感器抖动，默认 0.005
		StreamIdleTTL int     // 空闲数据流回收阈值（秒），默认 3600
	}

	// 风险融合配置（漂移梯度表的断点与下限）
	Fusion struct {
		DriftSafe     float64 // 高于该速度不做覆盖，默认 -0.01
		DriftWarning  float64 // 警告带下边界，默认 -0.05
		DriftCritical float64 // 危险带下边界，默认 -0.10
		FloorWarnMin  float64 // 警告带起始下限，默认 0.10
		FloorWarnMax  float64 // 警告带终止下限，默认 0.50
		FloorCritMax  float64 // 危险带终止下限，默认 0.80

		OptimalMax  float64 // 状态阈值：低于为 OPTIMAL，默认 0.10
		CriticalMin float64 // 状态阈值：高于等于为 CRITICAL_FAILURE，默认 0.80

		ActiveStates         []string // 允许评分的机台状态，默认 QUENCH,COMPLETED,RUNNING
		OperatingPressureMin float64  // 压力高于该值时视为运行中（状态标签不可信时的兜底），默认 1.0
	}

	// 工厂规格范围（User Spec），供根因标注使用
	Spec struct {
		FlowMin       float64 // 淬火流量下限（LPM），默认 50
		FlowMax       float64 // 淬火流量上限（LPM），默认 150
		TempMin       float64 // 工件温度下限（C），默认 830
		TempMax       float64 // 工件温度上限（C），默认 870
		SpeedMin      float64 // 扫描速度下限，默认 9
		SpeedMax      float64 // 扫描速度上限，默认 11
		PressureMin   float64 // 压力正常区间下限（Bar），默认 2.9
		PressureMax   float64 // 压力正常区间上限（Bar），默认 4.2
		DriftAlert    float64 // 根因判定的漂移阈值，默认 -0.05
		ConfidenceMin float64 // 漂移可信的最低 R²，默认 0.5
	}

	// 分类器模型配置（进程启动时加载一次，冻结）
	Models struct {
		PrimaryPath   string // 主分类器（快检）模型文件
		SecondaryPath string // 副分类器（复核）模型文件
	}

	// Redis 缓存与流配置
	Cache struct {
		TelemetryKeyPrefix string // 遥测缓存键前缀，如 "sentinel:machine:"
		TelemetrySuffix    string // 遥测缓存键后缀，如 ":telemetry"
		VerdictKeyPrefix   string // 裁决缓存键前缀，如 "sentinel:machine:"
		VerdictSuffix      string // 裁决缓存键后缀，如 ":verdict"
		VerdictTTL         int    // 裁决缓存 TTL（秒），默认 60
		VerdictStream      string // 裁决发布流，如 "sentinel:verdicts"
	}

	// 轮询配置
	Poll struct {
		Interval  int // 轮询间隔（秒），默认 5
		BatchSize int // 批量评估机台数量，默认 10
	}

	// MQTT 遥测主题
	Topics struct {
		Telemetry string // 遥测主题，如 "sentinel/+/telemetry"
	}

	// HTTP API 配置
	HTTP struct {
		Addr string
	}

	// 告警通知配置（CRITICAL_FAILURE 裁决触发 Webhook）
	Notifier struct {
		Enabled    bool
		WebhookURL string
		TimeoutSec int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "sentinel")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "pdm-ai-engine")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	// 趋势估计
	cfg.Trend.WindowSize = getEnvInt("TREND_WINDOW_SIZE", 20)
	cfg.Trend.MinSamples = getEnvInt("TREND_MIN_SAMPLES", 2)
	cfg.Trend.DriftDeadband = getEnvFloat("TREND_DRIFT_DEADBAND", 0.005)
	cfg.Trend.StreamIdleTTL = getEnvInt("TREND_STREAM_IDLE_TTL", 3600)

	// 风险融合（漂移梯度：-0.01 安全 / -0.05 警告 / -0.10 危险）
	cfg.Fusion.DriftSafe = getEnvFloat("FUSION_DRIFT_SAFE", -0.01)
	cfg.Fusion.DriftWarning = getEnvFloat("FUSION_DRIFT_WARNING", -0.05)
	cfg.Fusion.DriftCritical = getEnvFloat("FUSION_DRIFT_CRITICAL", -0.10)
	cfg.Fusion.FloorWarnMin = getEnvFloat("FUSION_FLOOR_WARN_MIN", 0.10)
	cfg.Fusion.FloorWarnMax = getEnvFloat("FUSION_FLOOR_WARN_MAX", 0.50)
	cfg.Fusion.FloorCritMax = getEnvFloat("FUSION_FLOOR_CRIT_MAX", 0.80)
	cfg.Fusion.OptimalMax = getEnvFloat("FUSION_OPTIMAL_MAX", 0.10)
	cfg.Fusion.CriticalMin = getEnvFloat("FUSION_CRITICAL_MIN", 0.80)
	cfg.Fusion.ActiveStates = splitStates(getEnv("FUSION_ACTIVE_STATES", "QUENCH,COMPLETED,RUNNING"))
	cfg.Fusion.OperatingPressureMin = getEnvFloat("FUSION_OPERATING_PRESSURE_MIN", 1.0)

	// 工厂规格范围
	cfg.Spec.FlowMin = getEnvFloat("SPEC_FLOW_MIN", 50)
	cfg.Spec.FlowMax = getEnvFloat("SPEC_FLOW_MAX", 150)
	cfg.Spec.TempMin = getEnvFloat("SPEC_TEMP_MIN", 830)
	cfg.Spec.TempMax = getEnvFloat("SPEC_TEMP_MAX", 870)
	cfg.Spec.SpeedMin = getEnvFloat("SPEC_SPEED_MIN", 9)
	cfg.Spec.SpeedMax = getEnvFloat("SPEC_SPEED_MAX", 11)
	cfg.Spec.PressureMin = getEnvFloat("SPEC_PRESSURE_MIN", 2.9)
	cfg.Spec.PressureMax = getEnvFloat("SPEC_PRESSURE_MAX", 4.2)
	cfg.Spec.DriftAlert = getEnvFloat("SPEC_DRIFT_ALERT", -0.05)
	cfg.Spec.ConfidenceMin = getEnvFloat("SPEC_CONFIDENCE_MIN", 0.5)

	// 模型文件
	cfg.Models.PrimaryPath = getEnv("MODEL_PRIMARY_PATH", "models/machine_doctor.json")
	cfg.Models.SecondaryPath = getEnv("MODEL_SECONDARY_PATH", "models/random_forest.json")

	// 缓存与流
	cfg.Cache.TelemetryKeyPrefix = getEnv("CACHE_TELEMETRY_PREFIX", "sentinel:machine:")
	cfg.Cache.TelemetrySuffix = ":telemetry"
	cfg.Cache.VerdictKeyPrefix = getEnv("CACHE_VERDICT_PREFIX", "sentinel:machine:")
	cfg.Cache.VerdictSuffix = ":verdict"
	cfg.Cache.VerdictTTL = getEnvInt("CACHE_VERDICT_TTL", 60)
	cfg.Cache.VerdictStream = getEnv("CACHE_VERDICT_STREAM", "sentinel:verdicts")

	// 轮询
	cfg.Poll.Interval = getEnvInt("POLL_INTERVAL", 5)
	cfg.Poll.BatchSize = getEnvInt("POLL_BATCH_SIZE", 10)

	// MQTT 主题
	cfg.Topics.Telemetry = getEnv("MQTT_TOPIC_TELEMETRY", "sentinel/+/telemetry")

	// HTTP
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8100")

	// 告警通知
	cfg.Notifier.Enabled = getEnvBool("NOTIFIER_ENABLED", false)
	cfg.Notifier.WebhookURL = getEnv("NOTIFIER_WEBHOOK_URL", "")
	cfg.Notifier.TimeoutSec = getEnvInt("NOTIFIER_TIMEOUT", 5)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// splitStates 解析逗号分隔的状态列表
func splitStates(raw string) []string {
	parts := strings.Split(raw, ",")
	states := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s != "" {
			states = append(states, s)
		}
	}
	return states
}
