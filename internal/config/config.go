// Package config loads the engine's tunables (spec §3's numeric
// defaults) from YAML, with CLI overrides exposed by cmd/inspectorctl via
// spf13/pflag, matching the teacher pack's doismellburning-samoyed
// config-loading idiom.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sytronik/thesia-go/internal/analyzer"
	"github.com/sytronik/thesia-go/internal/coord"
	"github.com/sytronik/thesia-go/internal/dynamics"
)

// EngineConfig bundles every engine-wide tunable named by spec.md.
type EngineConfig struct {
	SpecSetting struct {
		WinMs     float64 `yaml:"win_ms"`
		TOverlap  uint32  `yaml:"t_overlap"`
		FOverlap  uint32  `yaml:"f_overlap"`
		FreqScale string  `yaml:"freq_scale"` // "linear" | "mel"
	} `yaml:"spec_setting"`

	DBRange        float32 `yaml:"db_range"`
	ColormapLength int     `yaml:"colormap_length"`
	NMels          int     `yaml:"n_mels"`

	Limiter struct {
		Threshold float64 `yaml:"threshold"`
		AttackMs  float64 `yaml:"attack_ms"`
		HoldMs    float64 `yaml:"hold_ms"`
		ReleaseMs float64 `yaml:"release_ms"`
	} `yaml:"limiter"`

	MipmapMaxTileSize  int `yaml:"mipmap_max_tile_size"`
	MaxImgCacheWidthPx int `yaml:"max_img_cache_width_px"`
}

// Default returns the engine's documented numeric defaults.
func Default() EngineConfig {
	var c EngineConfig
	c.SpecSetting.WinMs = 40
	c.SpecSetting.TOverlap = 4
	c.SpecSetting.FOverlap = 1
	c.SpecSetting.FreqScale = "linear"
	c.DBRange = 120
	c.ColormapLength = 0 // 0 => full 65535 levels, no quantization
	c.NMels = 80
	c.Limiter.Threshold = 1.0
	c.Limiter.AttackMs = 5
	c.Limiter.HoldMs = 15
	c.Limiter.ReleaseMs = 40
	c.MipmapMaxTileSize = 2000
	c.MaxImgCacheWidthPx = 8000
	return c
}

// Load reads path as YAML over the defaults; a missing file is not an
// error (defaults alone are used).
func Load(path string) (EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers pflag overrides for the config's fields onto fs.
// Call Load first, then BindFlags, then fs.Parse to let CLI flags win.
func BindFlags(fs *pflag.FlagSet, cfg *EngineConfig) {
	fs.Float64Var(&cfg.SpecSetting.WinMs, "win-ms", cfg.SpecSetting.WinMs, "STFT analysis window length in milliseconds")
	fs.Uint32Var(&cfg.SpecSetting.TOverlap, "t-overlap", cfg.SpecSetting.TOverlap, "time-domain overlap factor")
	fs.Uint32Var(&cfg.SpecSetting.FOverlap, "f-overlap", cfg.SpecSetting.FOverlap, "frequency-domain (zero-padding) overlap factor")
	fs.StringVar(&cfg.SpecSetting.FreqScale, "freq-scale", cfg.SpecSetting.FreqScale, "linear or mel")
	fs.Float32Var(&cfg.DBRange, "db-range", cfg.DBRange, "dB window below the global max used to derive min_dB")
	fs.IntVar(&cfg.ColormapLength, "colormap-length", cfg.ColormapLength, "quantize spectrogram images to this many distinct levels (0 = no quantization)")
	fs.IntVar(&cfg.NMels, "n-mels", cfg.NMels, "mel filterbank bin count")
	fs.Float64Var(&cfg.Limiter.Threshold, "limiter-threshold", cfg.Limiter.Threshold, "")
	fs.Float64Var(&cfg.Limiter.AttackMs, "limiter-attack-ms", cfg.Limiter.AttackMs, "")
	fs.Float64Var(&cfg.Limiter.HoldMs, "limiter-hold-ms", cfg.Limiter.HoldMs, "")
	fs.Float64Var(&cfg.Limiter.ReleaseMs, "limiter-release-ms", cfg.Limiter.ReleaseMs, "")
	fs.IntVar(&cfg.MipmapMaxTileSize, "mipmap-max-tile-size", cfg.MipmapMaxTileSize, "")
	fs.IntVar(&cfg.MaxImgCacheWidthPx, "max-img-cache-width-px", cfg.MaxImgCacheWidthPx, "")
}

// AnalyzerSetting converts the loaded config into an analyzer.SpecSetting.
func (c EngineConfig) AnalyzerSetting() analyzer.SpecSetting {
	scale := coord.Linear
	if c.SpecSetting.FreqScale == "mel" {
		scale = coord.Mel
	}
	return analyzer.SpecSetting{
		WinMs:     c.SpecSetting.WinMs,
		TOverlap:  c.SpecSetting.TOverlap,
		FOverlap:  c.SpecSetting.FOverlap,
		FreqScale: scale,
	}
}

// LimiterParams converts the loaded config into dynamics.LimiterParams.
func (c EngineConfig) LimiterParams() dynamics.LimiterParams {
	return dynamics.LimiterParams{
		Threshold: c.Limiter.Threshold,
		AttackMs:  c.Limiter.AttackMs,
		HoldMs:    c.Limiter.HoldMs,
		ReleaseMs: c.Limiter.ReleaseMs,
	}
}
