// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CategoryConfig controls one output document category (the daily journal
// or the sleep note). Folder, Subfolder, and NameTemplate accept
// moment-style date tokens; the entry templates accept <time>, <mtime>,
// and <duration> placeholders. PrefixLetter is the single-character task
// marker used both to tag new entries and to detect existing ones.
type CategoryConfig struct {
	Enabled        bool   `json:"enabled"`
	Folder         string `json:"folder"`
	Subfolder      string `json:"subfolder"`
	NameTemplate   string `json:"name_template"`
	TemplatePath   string `json:"template_path"`
	AsleepTemplate string `json:"asleep_template"`
	AwakeTemplate  string `json:"awake_template"`
	PrefixLetter   string `json:"prefix_letter"`
}

type Config struct {
	DataDir  string `json:"data_dir"`
	VaultDir string `json:"vault_dir"`
	LogLevel string `json:"log_level"`
	UserID   string `json:"user_id"`
	// Source selects which adapter feeds a sync run: "calendar" or "googlefit".
	Source    string         `json:"source"`
	Journal   CategoryConfig `json:"journal"`
	SleepNote CategoryConfig `json:"sleep_note"`
	Calendar  struct {
		URL string `json:"url"`
	} `json:"calendar"`
	GoogleFit struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenExpiry  int64  `json:"token_expiry"` // epoch ms
		CallbackPort int    `json:"callback_port"`
	} `json:"googlefit"`
	Telegram struct {
		Token  string `json:"token"`
		ChatID int64  `json:"chat_id"`
	} `json:"telegram"`
	Sync struct {
		Schedule    string `json:"schedule"`     // cron expression for serve mode
		DefaultDays int    `json:"default_days"` // rolling window length
	} `json:"sync"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".sleepsync"),
		VaultDir: filepath.Join(os.Getenv("HOME"), "vault"),
		LogLevel: "info",
		UserID:   "user",
		Source:   "calendar",
	}
	cfg.Journal = CategoryConfig{
		Enabled:        true,
		Folder:         "Journal",
		Subfolder:      "YYYY/YYYY-MM",
		NameTemplate:   "YYYY-MM-DD ddd",
		AsleepTemplate: "(time:: <mtime>) Asleep at <time>",
		AwakeTemplate:  "(time:: <mtime>) Awake at <time> after <duration> hours of sleep",
		PrefixLetter:   "s",
	}
	cfg.SleepNote = CategoryConfig{
		Enabled:        false,
		Folder:         "Sleep",
		Subfolder:      "YYYY",
		NameTemplate:   "YYYY-MM-DD Sleep",
		AsleepTemplate: "Asleep: <time>",
		AwakeTemplate:  "Awake: <time> (<duration> hours)",
		PrefixLetter:   "s",
	}
	cfg.GoogleFit.CallbackPort = 16321
	cfg.Sync.Schedule = "0 9 * * *"
	cfg.Sync.DefaultDays = 7

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if url := os.Getenv("SLEEPSYNC_CALENDAR_URL"); url != "" {
		cfg.Calendar.URL = url
	}
	if id := os.Getenv("GOOGLEFIT_CLIENT_ID"); id != "" {
		cfg.GoogleFit.ClientID = id
	}
	if secret := os.Getenv("GOOGLEFIT_CLIENT_SECRET"); secret != "" {
		cfg.GoogleFit.ClientSecret = secret
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

// Save writes the config to path atomically (tmp file + rename).
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func writeDefaults(path string, cfg *Config) error {
	return Save(path, cfg)
}

// ListValues returns the config as a flat dot-keyed map. Secrets are
// masked when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, err
	}
	flat := Flatten(nested)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads the config at path and returns the value for a single
// dot-separated key. Secrets are masked.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	values, err := ListValues(cfg, true)
	if err != nil {
		return nil, err
	}
	val, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return val, nil
}

// SetValue sets a single dot-separated key in the config file and saves it.
func SetValue(path, key, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	flat := Flatten(nested)
	if _, ok := flat[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	flat[key] = coerce(flat[key], value)
	merged, err := json.Marshal(Unflatten(flat))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(path, cfg)
}

// coerce converts the string value to the type of the existing value so
// booleans and numbers survive a round-trip through the CLI.
func coerce(existing any, value string) any {
	switch existing.(type) {
	case bool:
		return value == "true"
	case float64:
		var f float64
		if _, err := fmt.Sscanf(value, "%g", &f); err == nil {
			return f
		}
	}
	return value
}
