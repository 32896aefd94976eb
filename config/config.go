package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind is the only document kind FromYaml accepts.
const Kind = "gridmap"

var ErrUnknownKind = errors.New("unknown config kind")

// OuterConfig is the envelope of every config document: a kind selector and a definition
// whose shape depends on the kind.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Link     LinkConfig     `yaml:"link"`
	Map      MapConfig      `yaml:"map"`
	Mode     string         `yaml:"mode"`
	Settings SettingsConfig `yaml:"settings"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// LinkConfig holds the websocket timings shared by the peer link and the viewer.
type LinkConfig struct {
	WriteWait       time.Duration `yaml:"write_wait"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongWait        time.Duration `yaml:"pong_wait"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
}

// MapConfig places the goal block, as the logical coordinate of its centre.
type MapConfig struct {
	End struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"end"`
}

type SettingsConfig struct {
	// Backend is "memory" or "redis".
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// Default returns the configuration used for any field a document leaves out.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: "8080"},
		Link: LinkConfig{
			WriteWait:       time.Second,
			PingInterval:    200 * time.Millisecond,
			PongWait:        800 * time.Millisecond,
			PublishInterval: 100 * time.Millisecond,
			MaxMessageSize:  8192,
		},
		Mode: "auto",
		Settings: SettingsConfig{
			Backend:   "memory",
			RedisAddr: "127.0.0.1:6379",
			KeyPrefix: "gridmap:",
		},
	}
	cfg.Map.End.X, cfg.Map.End.Y = 13, 18
	return cfg
}

// Addr is the listen address.
func (cfg *Config) Addr() string {
	return cfg.Server.Host + ":" + cfg.Server.Port
}

// FromYaml reads the config document at path. Viper reads the envelope; the definition is
// round-tripped through yaml so that it decodes with the yaml tags above, over the defaults.
// Viper lowercases keys, hence the snake_case tags.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if outerConfig.Kind != Kind {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, outerConfig.Kind)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(def, cfg); err != nil {
		return nil, fmt.Errorf("config: def: %w", err)
	}
	return cfg, nil
}
