package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var tuningYAML []byte

type Config struct {
	Broker BrokerConfig
	Store  StoreConfig
	Feed   FeedConfig
	Server ServerConfig
	Tuning TuningConfig
}

type BrokerConfig struct {
	URL        string // MQTT broker, e.g. tcp://localhost:1883
	ClientName string // topic segment for vision/<client>/movement
}

type StoreConfig struct {
	DatabaseURL    string // PostgreSQL connection URL with pgvector
	IdentitiesFile string // JSON enrollment dump, used when no database is configured
	EmbeddingDim   int    // defaults to 512
}

type FeedConfig struct {
	URL        string // websocket frame feed, e.g. ws://localhost:8000/frames
	FrameWidth int    // fallback frame width in pixels (default 640)
}

type ServerConfig struct {
	Addr string // dashboard listen address (default :8090)
}

// TuningConfig holds the tracking tunables. Defaults come from the embedded
// tuning.yaml; every field can be overridden by flags in cmd.
type TuningConfig struct {
	DistanceThreshold float64 `yaml:"distance_threshold"`
	AcquireConfidence float64 `yaml:"acquire_confidence"`
	GracePeriod       int     `yaml:"grace_period"`
	MinFaceWidth      float64 `yaml:"min_face_width"`
	DeadZoneRatio     float64 `yaml:"dead_zone_ratio"`
	WindowSize        int     `yaml:"window_size"`
	CooldownFrames    int     `yaml:"cooldown_frames"`
	BlinkDipRatio     float64 `yaml:"blink_dip_ratio"`
	BlinkMaxDipFrames int     `yaml:"blink_max_dip_frames"`
	MoveThresholdPx   float64 `yaml:"move_threshold_px"`
	MoveLagFrames     int     `yaml:"move_lag_frames"`
	SmileRatio        float64 `yaml:"smile_ratio"`
	DistanceRatio     float64 `yaml:"distance_ratio"`
	HeartbeatSeconds  int     `yaml:"heartbeat_seconds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envStr reads an environment variable with a default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var tuning TuningConfig
	if err := yaml.Unmarshal(tuningYAML, &tuning); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded tuning.yaml: " + err.Error())
	}

	return &Config{
		Broker: BrokerConfig{
			URL:        os.Getenv("MQTT_BROKER_URL"),
			ClientName: envStr("MQTT_CLIENT_NAME", "tracker"),
		},
		Store: StoreConfig{
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			IdentitiesFile: os.Getenv("IDENTITIES_FILE"),
			EmbeddingDim:   envInt("EMBEDDING_DIM", 512),
		},
		Feed: FeedConfig{
			URL:        os.Getenv("FEED_URL"),
			FrameWidth: envInt("FRAME_WIDTH", 640),
		},
		Server: ServerConfig{
			Addr: envStr("SERVER_ADDR", ":8090"),
		},
		Tuning: tuning,
	}
}

// Validate checks the tuning values before a session starts. A violation
// here is a configuration error: the process refuses to run rather than
// misbehaving quietly.
func (t TuningConfig) Validate() error {
	if t.DistanceThreshold <= 0 || t.DistanceThreshold > 1 {
		return fmt.Errorf("distance threshold must be in (0, 1], got %g", t.DistanceThreshold)
	}
	if t.AcquireConfidence < 0 || t.AcquireConfidence > 1 {
		return fmt.Errorf("acquire confidence must be in [0, 1], got %g", t.AcquireConfidence)
	}
	if t.GracePeriod < 1 {
		return fmt.Errorf("grace period must be at least 1 frame, got %d", t.GracePeriod)
	}
	if t.MinFaceWidth < 0 {
		return fmt.Errorf("min face width must not be negative, got %g", t.MinFaceWidth)
	}
	if t.DeadZoneRatio < 0 || t.DeadZoneRatio >= 0.5 {
		return fmt.Errorf("dead zone ratio must be in [0, 0.5), got %g", t.DeadZoneRatio)
	}
	if t.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2 frames, got %d", t.WindowSize)
	}
	if t.CooldownFrames < 0 {
		return fmt.Errorf("cooldown must not be negative, got %d", t.CooldownFrames)
	}
	if t.MoveLagFrames < 1 || t.MoveLagFrames > t.WindowSize {
		return fmt.Errorf("move lag must be in [1, window size], got %d", t.MoveLagFrames)
	}
	if t.SmileRatio <= 1 {
		return fmt.Errorf("smile ratio must exceed 1, got %g", t.SmileRatio)
	}
	if t.BlinkDipRatio <= 0 || t.BlinkDipRatio >= 1 {
		return fmt.Errorf("blink dip ratio must be in (0, 1), got %g", t.BlinkDipRatio)
	}
	if t.DistanceRatio <= 0 {
		return fmt.Errorf("distance ratio must be positive, got %g", t.DistanceRatio)
	}
	return nil
}
