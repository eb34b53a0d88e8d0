package config

import (
	"os"
	"testing"
)

func TestLoad_TuningDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Tuning.DistanceThreshold != 0.35 {
		t.Errorf("expected default distance threshold 0.35, got %g", cfg.Tuning.DistanceThreshold)
	}
	if cfg.Tuning.GracePeriod != 15 {
		t.Errorf("expected default grace period 15, got %d", cfg.Tuning.GracePeriod)
	}
	if cfg.Tuning.DeadZoneRatio != 0.1 {
		t.Errorf("expected default dead zone 0.1, got %g", cfg.Tuning.DeadZoneRatio)
	}
	if err := cfg.Tuning.Validate(); err != nil {
		t.Errorf("embedded defaults must validate, got %v", err)
	}
}

func TestLoad_DefaultEmbeddingDim(t *testing.T) {
	os.Unsetenv("EMBEDDING_DIM")

	cfg := Load()

	if cfg.Store.EmbeddingDim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Store.EmbeddingDim)
	}
}

func TestLoad_CustomEmbeddingDim(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "768")

	cfg := Load()

	if cfg.Store.EmbeddingDim != 768 {
		t.Errorf("expected embedding dim 768, got %d", cfg.Store.EmbeddingDim)
	}
}

func TestLoad_InvalidEmbeddingDim(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "invalid")

	cfg := Load()

	// Should fall back to default
	if cfg.Store.EmbeddingDim != 512 {
		t.Errorf("expected default embedding dim 512 for invalid input, got %d", cfg.Store.EmbeddingDim)
	}
}

func TestLoad_NegativeEmbeddingDim(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "-100")

	cfg := Load()

	if cfg.Store.EmbeddingDim != 512 {
		t.Errorf("expected default embedding dim 512 for negative input, got %d", cfg.Store.EmbeddingDim)
	}
}

func TestLoad_BrokerConfig(t *testing.T) {
	t.Setenv("MQTT_BROKER_URL", "tcp://broker.test:1883")
	t.Setenv("MQTT_CLIENT_NAME", "lab-rig")

	cfg := Load()

	if cfg.Broker.URL != "tcp://broker.test:1883" {
		t.Errorf("expected broker URL 'tcp://broker.test:1883', got '%s'", cfg.Broker.URL)
	}
	if cfg.Broker.ClientName != "lab-rig" {
		t.Errorf("expected client name 'lab-rig', got '%s'", cfg.Broker.ClientName)
	}
}

func TestLoad_DefaultClientName(t *testing.T) {
	os.Unsetenv("MQTT_CLIENT_NAME")

	cfg := Load()

	if cfg.Broker.ClientName != "tracker" {
		t.Errorf("expected default client name 'tracker', got '%s'", cfg.Broker.ClientName)
	}
}

func TestLoad_ServerDefaultAddr(t *testing.T) {
	os.Unsetenv("SERVER_ADDR")

	cfg := Load()

	if cfg.Server.Addr != ":8090" {
		t.Errorf("expected default server addr ':8090', got '%s'", cfg.Server.Addr)
	}
}

func TestTuningValidate(t *testing.T) {
	valid := Load().Tuning

	tests := []struct {
		name   string
		mutate func(*TuningConfig)
		ok     bool
	}{
		{"defaults", func(*TuningConfig) {}, true},
		{"zero dead zone", func(c *TuningConfig) { c.DeadZoneRatio = 0 }, true},
		{"negative threshold", func(c *TuningConfig) { c.DistanceThreshold = -0.1 }, false},
		{"threshold above one", func(c *TuningConfig) { c.DistanceThreshold = 1.5 }, false},
		{"zero grace period", func(c *TuningConfig) { c.GracePeriod = 0 }, false},
		{"dead zone swallows frame", func(c *TuningConfig) { c.DeadZoneRatio = 0.5 }, false},
		{"window too small", func(c *TuningConfig) { c.WindowSize = 1 }, false},
		{"negative cooldown", func(c *TuningConfig) { c.CooldownFrames = -1 }, false},
		{"lag exceeds window", func(c *TuningConfig) { c.MoveLagFrames = 11 }, false},
		{"smile ratio below one", func(c *TuningConfig) { c.SmileRatio = 0.9 }, false},
		{"blink dip ratio one", func(c *TuningConfig) { c.BlinkDipRatio = 1 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
