// Package config loads the server's HCL configuration file (tables, bots,
// timing knobs), grounded on lox-pokerforbots' server config loader, and
// applies the spec's documented defaults for any field the file omits.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the full server configuration: one or more tables, the bot
// roster available to seat, and the server-wide timing/storage knobs.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Tables []TableConfig  `hcl:"table,block"`
	Bots   []BotConfig    `hcl:"bot,block"`
}

// ServerSettings are the process-wide knobs spec.md §4/§9 names.
type ServerSettings struct {
	Address               string `hcl:"address,optional"`
	Port                  int    `hcl:"port,optional"`
	LogLevel              string `hcl:"log_level,optional"`
	LogDir                string `hcl:"log_dir,optional"`
	DBPath                string `hcl:"db_path,optional"`
	InitMoney             int64  `hcl:"init_money,optional"`
	BetTimeoutSeconds     int    `hcl:"bet_timeout_seconds,optional"`
	TimeoutToleranceMS    int    `hcl:"timeout_tolerance_ms,optional"`
	WaitAfterStreetMS     int    `hcl:"wait_after_street_ms,optional"`
	PingDeadlineSeconds   int    `hcl:"ping_deadline_seconds,optional"`
	PingGraceSeconds      int    `hcl:"ping_grace_seconds,optional"`
	BotDecisionURL        string `hcl:"bot_decision_url,optional"`
	BotDecisionTimeoutMS  int    `hcl:"bot_decision_timeout_ms,optional"`
}

// TableConfig is one table the server starts with, carrying the blinds and
// seat count spec.md §3/§4 name per table.
type TableConfig struct {
	Name       string `hcl:"name,label"`
	RoomSize   int    `hcl:"room_size,optional"`
	SmallBlind int64  `hcl:"small_blind,optional"`
	BigBlind   int64  `hcl:"big_blind,optional"`
	Private    bool   `hcl:"private,optional"`
}

// BotConfig is one pre-seeded bot available to add to a table.
type BotConfig struct {
	Name       string `hcl:"name,label"`
	Difficulty string `hcl:"difficulty,optional"` // easy, medium, hard
	BuyIn      int64  `hcl:"buy_in,optional"`
}

// Default returns the spec's documented defaults (spec.md §4/§9): a 3000-chip
// starting stack, 10-seat tables, 5/10 blinds, a 2s inter-street wait, and
// the ping/grace liveness timing for disconnect handling.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:              "0.0.0.0",
			Port:                 8080,
			LogLevel:             "info",
			LogDir:               "logs",
			DBPath:               "poker.db",
			InitMoney:            3000,
			BetTimeoutSeconds:    15,
			TimeoutToleranceMS:   2000,
			WaitAfterStreetMS:    2000,
			PingDeadlineSeconds:  2,
			PingGraceSeconds:     3,
			BotDecisionTimeoutMS: 1200,
		},
		Tables: []TableConfig{
			{Name: "main", RoomSize: 10, SmallBlind: 5, BigBlind: 10},
		},
	}
}

// Load reads path, falling back to Default() if it doesn't exist, and fills
// in any zero-valued field left by a partial file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %q: %s", path, diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %q: %s", path, diags.Error())
	}

	cfg.applyDefaults()
	if len(cfg.Tables) == 0 {
		cfg.Tables = Default().Tables
	}
	for i := range cfg.Tables {
		if cfg.Tables[i].RoomSize == 0 {
			cfg.Tables[i].RoomSize = 10
		}
		if cfg.Tables[i].SmallBlind == 0 {
			cfg.Tables[i].SmallBlind = 5
		}
		if cfg.Tables[i].BigBlind == 0 {
			cfg.Tables[i].BigBlind = 2 * cfg.Tables[i].SmallBlind
		}
	}
	for i := range cfg.Bots {
		if cfg.Bots[i].Difficulty == "" {
			cfg.Bots[i].Difficulty = "medium"
		}
		if cfg.Bots[i].BuyIn == 0 {
			cfg.Bots[i].BuyIn = cfg.Server.InitMoney
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default().Server
	if c.Server.Address == "" {
		c.Server.Address = d.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.LogLevel
	}
	if c.Server.LogDir == "" {
		c.Server.LogDir = d.LogDir
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = d.DBPath
	}
	if c.Server.InitMoney == 0 {
		c.Server.InitMoney = d.InitMoney
	}
	if c.Server.BetTimeoutSeconds == 0 {
		c.Server.BetTimeoutSeconds = d.BetTimeoutSeconds
	}
	if c.Server.TimeoutToleranceMS == 0 {
		c.Server.TimeoutToleranceMS = d.TimeoutToleranceMS
	}
	if c.Server.WaitAfterStreetMS == 0 {
		c.Server.WaitAfterStreetMS = d.WaitAfterStreetMS
	}
	if c.Server.PingDeadlineSeconds == 0 {
		c.Server.PingDeadlineSeconds = d.PingDeadlineSeconds
	}
	if c.Server.PingGraceSeconds == 0 {
		c.Server.PingGraceSeconds = d.PingGraceSeconds
	}
	if c.Server.BotDecisionTimeoutMS == 0 {
		c.Server.BotDecisionTimeoutMS = d.BotDecisionTimeoutMS
	}
}

// Validate rejects a configuration spec.md's invariants can't tolerate.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("config: at least one table must be configured")
	}
	for _, t := range c.Tables {
		if t.BigBlind <= t.SmallBlind {
			return fmt.Errorf("config: table %s: big_blind must exceed small_blind", t.Name)
		}
		if t.RoomSize < 2 || t.RoomSize > 10 {
			return fmt.Errorf("config: table %s: room_size must be between 2 and 10", t.Name)
		}
	}
	for _, b := range c.Bots {
		switch b.Difficulty {
		case "easy", "medium", "hard":
		default:
			return fmt.Errorf("config: bot %s: invalid difficulty %q", b.Name, b.Difficulty)
		}
	}
	return nil
}

// BetTimeout is ServerSettings.BetTimeoutSeconds as a time.Duration.
func (s ServerSettings) BetTimeout() time.Duration {
	return time.Duration(s.BetTimeoutSeconds) * time.Second
}

// TimeoutTolerance is ServerSettings.TimeoutToleranceMS as a time.Duration.
func (s ServerSettings) TimeoutTolerance() time.Duration {
	return time.Duration(s.TimeoutToleranceMS) * time.Millisecond
}

// WaitAfterStreet is ServerSettings.WaitAfterStreetMS as a time.Duration.
func (s ServerSettings) WaitAfterStreet() time.Duration {
	return time.Duration(s.WaitAfterStreetMS) * time.Millisecond
}

// PingDeadline is ServerSettings.PingDeadlineSeconds as a time.Duration.
func (s ServerSettings) PingDeadline() time.Duration {
	return time.Duration(s.PingDeadlineSeconds) * time.Second
}

// PingGrace is ServerSettings.PingGraceSeconds as a time.Duration.
func (s ServerSettings) PingGrace() time.Duration {
	return time.Duration(s.PingGraceSeconds) * time.Second
}

// BotDecisionTimeout is ServerSettings.BotDecisionTimeoutMS as a
// time.Duration.
func (s ServerSettings) BotDecisionTimeout() time.Duration {
	return time.Duration(s.BotDecisionTimeoutMS) * time.Millisecond
}
