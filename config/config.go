// Package config loads settings shared by the assign CLI and the section
// server. Values come from an optional YAML file with environment variable
// overrides; secrets are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"assigner/match"
	"assigner/milp"
)

type Config struct {
	Solver SolverConfig `yaml:"solver"`
	Costs  CostsConfig  `yaml:"costs"`

	// Diagnose re-solves relaxed models after an infeasible outcome to name
	// the constraint families responsible.
	Diagnose bool `yaml:"diagnose" env:"ASSIGN_DIAGNOSE"`

	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

type SolverConfig struct {
	// Backend is a registered optimizer name: bnb, exhaustive, or highs and
	// glpk when built with the matching tag.
	Backend   string        `yaml:"backend" env:"SOLVER_BACKEND" env-default:"bnb"`
	TimeLimit time.Duration `yaml:"time_limit" env:"SOLVER_TIME_LIMIT" env-default:"0s"`
	NodeLimit int           `yaml:"node_limit" env:"SOLVER_NODE_LIMIT" env-default:"200000"`
	Tol       float64       `yaml:"tol" env:"SOLVER_TOL" env-default:"1e-9"`
	IntTol    float64       `yaml:"int_tol" env:"SOLVER_INT_TOL" env-default:"1e-6"`
	// WarmStart seeds the optimizer with a local search result.
	WarmStart bool `yaml:"warm_start" env:"SOLVER_WARM_START"`
}

type CostsConfig struct {
	// Base of the exponential rank cost; a first choice costs 1.
	Base float64 `yaml:"base" env:"COSTS_BASE" env-default:"2"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr" env:"ADDR" env-default:":8080"`
	PGConn       string `yaml:"-" env:"PGCONN"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"CLIENT_SECRET"`
	Admins       string `yaml:"admins" env:"ADMINS"`
}

// Load reads path with environment overrides. A missing file is not an
// error: defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	// cleanenv only fills zero fields from env-default, so a default of true
	// is set here to let the file turn it off.
	cfg := &Config{Diagnose: true}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if !slices.Contains(milp.Names(), c.Solver.Backend) {
		return fmt.Errorf("solver.backend %q is not available (have %s)", c.Solver.Backend, strings.Join(milp.Names(), ", "))
	}
	if err := (match.Exponential{Base: c.Costs.Base}).Validate(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) Params() milp.Params {
	return milp.Params{
		Tol:       c.Solver.Tol,
		IntTol:    c.Solver.IntTol,
		NodeLimit: c.Solver.NodeLimit,
		TimeLimit: c.Solver.TimeLimit,
	}
}

// Optimizer builds the configured backend from the milp registry.
func (c *Config) Optimizer() (milp.Optimizer, error) {
	return milp.New(c.Solver.Backend, c.Params())
}

func (c *Config) CostModel() match.CostModel {
	return match.Exponential{Base: c.Costs.Base}
}

func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

// AdminList splits the comma-separated ADMINS value.
func (s ServerConfig) AdminList() []string {
	var out []string
	for _, a := range strings.Split(s.Admins, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// RequireServer reports the server settings that must be present.
func (c *Config) RequireServer() error {
	var missing []string
	for key, v := range map[string]string{
		"PGCONN":        c.Server.PGConn,
		"CLIENT_ID":     c.Server.ClientID,
		"CLIENT_SECRET": c.Server.ClientSecret,
		"ADMINS":        c.Server.Admins,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s environment variable is required", strings.Join(missing, ", "))
	}
	return nil
}

// Write dumps the effective non-secret configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
