package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the current capture configuration and handles updates.
type Manager struct {
	config Config
	preset string
	mu     sync.RWMutex

	// Callback when config changes (for applying to capture sources)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new manager with default config.
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
		preset: PresetDefault,
	}
}

// NewManagerWithPreset creates a manager starting from a named preset.
func NewManagerWithPreset(name string) (*Manager, error) {
	if name == "" {
		return NewManager(), nil
	}
	preset := GetPreset(name)
	if preset == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	return &Manager{config: *preset, preset: name}, nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Preset returns the name of the last applied preset, or "custom".
func (m *Manager) Preset() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.preset
}

// Quality returns the current camera quality hint.
func (m *Manager) Quality() float64 {
	return m.GetConfig().Quality
}

// LibraryQuality returns the current library quality hint.
func (m *Manager) LibraryQuality() float64 {
	return m.GetConfig().LibraryQuality
}

// SetConfig updates the configuration.
func (m *Manager) SetConfig(cfg Config) error {
	return m.set(cfg, "custom")
}

func (m *Manager) set(cfg Config, preset string) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	m.config = cfg
	m.preset = preset
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, plus an optional "preset".
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	preset := "custom"
	if presetName, ok := params["preset"].(string); ok {
		p := GetPreset(presetName)
		if p == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		cfg = *p
		preset = presetName
	}

	for key, value := range params {
		switch key {
		case "preset":
		case "quality":
			v, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("quality: expected number, got %T", value)
			}
			cfg.Quality = v
			preset = "custom"
		case "library_quality":
			v, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("library_quality: expected number, got %T", value)
			}
			cfg.LibraryQuality = v
			preset = "custom"
		case "max_frame_age_ms":
			v, ok := toInt(value)
			if !ok {
				return fmt.Errorf("max_frame_age_ms: expected number, got %T", value)
			}
			cfg.MaxFrameAgeMs = v
			preset = "custom"
		default:
			return fmt.Errorf("unknown field: %s", key)
		}
	}

	return m.set(cfg, preset)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)
	result["preset"] = m.Preset()

	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
