package koth

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Options are the per-match mod options, parsed once at initialization.
// Durations are kept in ticks; conversion uses the server tick rate.
type Options struct {
	Enabled           bool
	HillDesc          string
	BuildOutsideBoxes bool
	WinTicks          int64
	CaptureTicks      int64
	HealthMult        float64
	KingVision        bool
	Cadence           int
}

// Mod option keys as the engine supplies them.
const (
	optEnabled           = "koth_enabled"
	optHill              = "koth_hill"
	optBuildOutsideBoxes = "koth_buildoutsideboxes"
	optWinMinutes        = "koth_winminutes"
	optCaptureSeconds    = "koth_capturetime"
	optHealthMult        = "koth_healthmult"
	optKingVision        = "koth_kingvision"
)

const (
	defaultWinMinutes     = 5.0
	defaultCaptureSeconds = 20.0
	defaultCadence        = 6
)

// ParseOptions builds Options from raw key/value mod options. Missing or
// malformed numeric values fall back to documented defaults with a logged
// warning; option parsing is never fatal.
func ParseOptions(raw map[string]string, tickRate int, logger *log.Logger) Options {
	o := Options{
		HealthMult:   1,
		WinTicks:     int64(defaultWinMinutes * 60 * float64(tickRate)),
		CaptureTicks: int64(defaultCaptureSeconds * float64(tickRate)),
		Cadence:      defaultCadence,
	}

	o.Enabled = parseBool(raw[optEnabled])
	o.HillDesc = strings.TrimSpace(raw[optHill])
	o.BuildOutsideBoxes = parseBool(raw[optBuildOutsideBoxes])
	o.KingVision = parseBool(raw[optKingVision])

	if v, ok := raw[optWinMinutes]; ok {
		if m, err := strconv.ParseFloat(v, 64); err == nil && m > 0 {
			o.WinTicks = int64(m * 60 * float64(tickRate))
		} else if logger != nil {
			logger.Printf("option %s=%q invalid, using %v minutes", optWinMinutes, v, defaultWinMinutes)
		}
	}
	if v, ok := raw[optCaptureSeconds]; ok {
		if s, err := strconv.ParseFloat(v, 64); err == nil && s > 0 {
			o.CaptureTicks = int64(s * float64(tickRate))
		} else if logger != nil {
			logger.Printf("option %s=%q invalid, using %v seconds", optCaptureSeconds, v, defaultCaptureSeconds)
		}
	}
	if v, ok := raw[optHealthMult]; ok {
		if m, err := strconv.ParseFloat(v, 64); err == nil && m > 0 {
			o.HealthMult = m
		} else if logger != nil {
			logger.Printf("option %s=%q invalid, using 1", optHealthMult, v)
		}
	}
	return o
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Config is the server-side configuration file (configs/koth.yaml).
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	TickRateHz int    `yaml:"tick_rate_hz"`
	DataDir    string `yaml:"data_dir"`
	DisableDB  bool   `yaml:"disable_db"`
	EventLog   bool   `yaml:"event_log"`

	// Used until the engine HELLO provides the real map dimensions.
	MapSizeX float64 `yaml:"map_size_x"`
	MapSizeZ float64 `yaml:"map_size_z"`

	// Defaults applied when the HELLO carries no mod options.
	ModOptions map[string]string `yaml:"mod_options"`

	// Capture-eligible unit def names.
	EligibleDefs []string `yaml:"eligible_defs"`

	// Start regions by alliance id, same descriptor format as the hill.
	StartRegions map[int32]string `yaml:"start_regions"`
}

func Defaults() Config {
	return Config{
		ListenAddr:   ":8070",
		TickRateHz:   30,
		DataDir:      "./data",
		EventLog:     true,
		MapSizeX:     8192,
		MapSizeZ:     8192,
		EligibleDefs: []string{"armcom", "corcom", "legcom"},
	}
}

func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("koth.yaml: %w", err)
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = Defaults().TickRateHz
	}
	return c, nil
}
