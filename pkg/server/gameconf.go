package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GameConf holds server-level configuration parameters, loaded from a
// YAML file with command-line overrides applied on top.
type GameConf struct {
	// --- Identity ---
	ServerName string `yaml:"server_name"`
	Port       int    `yaml:"port"`

	// --- Resources ---
	MapFile  string `yaml:"map_file"`
	UserFile string `yaml:"user_file"`
	BoltFile string `yaml:"bolt_file"` // non-empty selects the bbolt store
	TextDir  string `yaml:"text_dir"`

	// --- Game rules ---
	NumTreasures   int     `yaml:"num_treasures"`
	TreasureMinSep float64 `yaml:"treasure_min_sep"`
	FOWRadius      float64 `yaml:"fow_radius"`

	// --- Persistence ---
	SaveInterval int `yaml:"save_interval"` // seconds between registry flushes

	// --- Web sidecar (metrics + websocket transport) ---
	WebEnabled bool   `yaml:"web_enabled"`
	WebHost    string `yaml:"web_host"`
	WebPort    int    `yaml:"web_port"`
}

// DefaultGameConf returns defaults matching the classic game parameters.
func DefaultGameConf() *GameConf {
	return &GameConf{
		ServerName:     "octothorpe-gameserver",
		Port:           8001,
		MapFile:        "map.txt",
		UserFile:       "users.json",
		NumTreasures:   15,
		TreasureMinSep: 3,
		FOWRadius:      5,
		SaveInterval:   60,
		WebPort:        8080,
	}
}

// LoadGameConf reads a YAML config file over the defaults.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return gc, nil
}
