package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nftview/pkg/models"
	"nftview/pkg/utils"
)

const ConfigFileName = ".nftview.json"

// EnvAPIURL overrides the configured backend URL when set.
const EnvAPIURL = "NFTVIEW_API_URL"

const (
	DefaultAPIURL            = "http://localhost:8080/"
	DefaultIPFSGateway       = "https://ipfs.io/ipfs/"
	DefaultCollectionAddress = "0x33084a2a5e90622033caac1fe1aa0ed2de41cf4b"
	DefaultOwnerAddress      = "0x8fdd8db198b292d233fb5dc191e31bebc41e1144"
	DefaultEtherDecimals     = 6
	DefaultHistoryLimit      = 100
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("validation failed")

// Config holds application settings.
type Config struct {
	APIURL            string          `json:"api_url"`
	IPFSGateway       string          `json:"ipfs_gateway"`
	CollectionAddress string          `json:"collection_address"`
	OwnerAddress      string          `json:"owner_address"`
	View              models.ViewKind `json:"view"`
	EtherDecimals     int             `json:"ether_decimals"`
	HistoryLimit      int             `json:"history_limit"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:            DefaultAPIURL,
		IPFSGateway:       DefaultIPFSGateway,
		CollectionAddress: DefaultCollectionAddress,
		OwnerAddress:      DefaultOwnerAddress,
		View:              models.ViewCollection,
		EtherDecimals:     DefaultEtherDecimals,
		HistoryLimit:      DefaultHistoryLimit,
	}
}

// Scope returns the address searched in the configured view.
func (c Config) Scope() string {
	if c.View == models.ViewOwner {
		return c.OwnerAddress
	}
	return c.CollectionAddress
}

// SetScope stores scope as the address for view.
func (c *Config) SetScope(view models.ViewKind, scope string) {
	if view == models.ViewOwner {
		c.OwnerAddress = scope
	} else {
		c.CollectionAddress = scope
	}
	c.View = view
}

// Validate checks every field and returns the first problem found.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_url %q is not an http(s) URL", ErrInvalidConfig, c.APIURL)
	}
	if c.IPFSGateway != "" {
		g, err := url.Parse(c.IPFSGateway)
		if err != nil || g.Host == "" {
			return fmt.Errorf("%w: ipfs_gateway %q is not a URL", ErrInvalidConfig, c.IPFSGateway)
		}
	}
	if _, err := utils.NormalizeAddress(c.CollectionAddress); err != nil {
		return fmt.Errorf("%w: collection_address: %v", ErrInvalidConfig, err)
	}
	if _, err := utils.NormalizeAddress(c.OwnerAddress); err != nil {
		return fmt.Errorf("%w: owner_address: %v", ErrInvalidConfig, err)
	}
	if !c.View.Valid() {
		return fmt.Errorf("%w: unknown view %q", ErrInvalidConfig, c.View)
	}
	if c.EtherDecimals < 0 || c.EtherDecimals > 18 {
		return fmt.Errorf("%w: ether_decimals must be between 0 and 18", ErrInvalidConfig)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history_limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// Normalize lowercases the addresses and trims whitespace. It reports
// whether anything changed. Addresses that do not parse are left as-is.
func (c *Config) Normalize() bool {
	before := *c
	c.APIURL = strings.TrimSpace(c.APIURL)
	c.IPFSGateway = strings.TrimSpace(c.IPFSGateway)
	if a, err := utils.NormalizeAddress(c.CollectionAddress); err == nil {
		c.CollectionAddress = a
	}
	if a, err := utils.NormalizeAddress(c.OwnerAddress); err == nil {
		c.OwnerAddress = a
	}
	return *c != before
}

// ApplyEnv applies environment overrides.
func ApplyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.APIURL = v
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

// LoadConfig decodes r over the defaults, so absent keys keep their
// default value.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := Default()
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.View == "" {
		cfg.View = models.ViewCollection
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RestoreLastBackup copies the newest backup over configPath.
func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
