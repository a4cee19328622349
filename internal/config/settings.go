package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	CodexBin string `yaml:"codex_bin"` // binary name or path, default "codex"
	Model    string `yaml:"model"`
	Sandbox  string `yaml:"sandbox"` // "restricted" or "unrestricted"
	WorkDir  string `yaml:"work_dir"`

	AuthPath      string        `yaml:"auth_path"`
	TokenURL      string        `yaml:"token_url"`
	ClientID      string        `yaml:"client_id"`
	RefreshLeeway time.Duration `yaml:"refresh_leeway"`

	KillGrace time.Duration `yaml:"kill_grace"`

	HistoryDB    string `yaml:"history_db"`
	NoHistory    bool   `yaml:"no_history"`
	HistoryLimit int    `yaml:"history_limit"` // default rows shown by the history command
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &s, nil
}

func (s *Settings) validate() error {
	switch s.Sandbox {
	case "", "restricted", "unrestricted":
	default:
		return fmt.Errorf("invalid sandbox %q (want restricted or unrestricted)", s.Sandbox)
	}
	if s.RefreshLeeway < 0 {
		return fmt.Errorf("refresh_leeway must not be negative")
	}
	if s.KillGrace < 0 {
		return fmt.Errorf("kill_grace must not be negative")
	}
	return nil
}
