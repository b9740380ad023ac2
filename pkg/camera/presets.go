package camera

// Preset names for common configurations
const (
	PresetDefault      = "default"
	PresetLowBandwidth = "low-bandwidth"
	PresetBalanced     = "balanced"
	PresetHigh         = "high"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:      DefaultConfig(),
		PresetLowBandwidth: LowBandwidthConfig(),
		PresetBalanced:     BalancedConfig(),
		PresetHigh:         HighConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLowBandwidth,
		PresetBalanced,
		PresetHigh,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LowBandwidthConfig keeps uploads small on slow mobile links.
func LowBandwidthConfig() Config {
	cfg := DefaultConfig()
	cfg.Quality = 0.1
	cfg.LibraryQuality = 0.3
	cfg.MaxFrameAgeMs = 5000
	return cfg
}

// BalancedConfig trades some upload size for accuracy.
func BalancedConfig() Config {
	cfg := DefaultConfig()
	cfg.Quality = 0.5
	cfg.LibraryQuality = 0.6
	return cfg
}

// HighConfig sends near-original images.
func HighConfig() Config {
	cfg := DefaultConfig()
	cfg.Quality = 0.9
	cfg.LibraryQuality = 0.9
	cfg.MaxFrameAgeMs = 1500
	return cfg
}
