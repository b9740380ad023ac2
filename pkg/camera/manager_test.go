package camera

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.Empty(t, cfg.Validate(), name)
	}
	assert.Nil(t, GetPreset("ultra"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	cfg.LibraryQuality = 1.5
	cfg.MaxFrameAgeMs = -1
	assert.Len(t, cfg.Validate(), 3)
}

func TestUpdateConfigFields(t *testing.T) {
	m := NewManager()
	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	require.NoError(t, m.UpdateConfig(map[string]interface{}{
		"quality":          0.4,
		"max_frame_age_ms": float64(1000),
	}))
	cfg := m.GetConfig()
	assert.Equal(t, 0.4, cfg.Quality)
	assert.Equal(t, 0.5, cfg.LibraryQuality)
	assert.Equal(t, 1000, cfg.MaxFrameAgeMs)
	assert.Equal(t, "custom", m.Preset())
	assert.Len(t, applied, 1)
}

func TestUpdateConfigPresetWithOverride(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.UpdateConfig(map[string]interface{}{"preset": PresetHigh}))
	assert.Equal(t, PresetHigh, m.Preset())
	assert.Equal(t, 0.9, m.Quality())

	require.NoError(t, m.UpdateConfig(map[string]interface{}{
		"preset":          PresetLowBandwidth,
		"library_quality": 0.2,
	}))
	assert.Equal(t, 0.1, m.Quality())
	assert.Equal(t, 0.2, m.LibraryQuality())
	assert.Equal(t, "custom", m.Preset())
}

func TestUpdateConfigRejects(t *testing.T) {
	m := NewManager()
	before := m.GetConfig()

	assert.Error(t, m.UpdateConfig(map[string]interface{}{"preset": "nope"}))
	assert.Error(t, m.UpdateConfig(map[string]interface{}{"quality": "high"}))
	assert.Error(t, m.UpdateConfig(map[string]interface{}{"zoom": 2}))
	assert.Error(t, m.UpdateConfig(map[string]interface{}{"quality": 2.0}))
	assert.Equal(t, before, m.GetConfig())
}

func TestCallbackError(t *testing.T) {
	m := NewManager()
	m.OnConfigChange = func(Config) error { return errors.New("device gone") }
	err := m.SetConfig(BalancedConfig())
	assert.ErrorContains(t, err, "device gone")
}

func TestNewManagerWithPreset(t *testing.T) {
	m, err := NewManagerWithPreset(PresetBalanced)
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Quality())
	assert.Equal(t, PresetBalanced, m.GetConfigJSON()["preset"])

	_, err = NewManagerWithPreset("cinema")
	assert.Error(t, err)
}
