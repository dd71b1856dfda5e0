// Package config loads the daemon's typed settings record from a keyed INI
// file, searched across an ordered list of candidate locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-ini/ini"

	"github.com/ctomkow/gluetube/internal/errs"
)

// Keys recognized in the gluetube config file, per spec section.
const (
	KeyPipelineDir          = "PIPELINE_DIR"
	KeyPipelineScanInterval = "PIPELINE_SCAN_INTERVAL"
	KeySQLiteDir            = "SQLITE_DIR"
	KeySQLiteAppName        = "SQLITE_APP_NAME"
	KeySQLiteKVName         = "SQLITE_KV_NAME"
	KeySQLiteToken          = "SQLITE_TOKEN"
	KeySocketFile           = "SOCKET_FILE"
	KeyPIDFile              = "PID_FILE"
	KeyLogFile              = "GLUETUBE_LOG_FILE"
	KeyHTTPProxy            = "HTTP_PROXY"
	KeyHTTPSProxy           = "HTTPS_PROXY"
)

var requiredKeys = []string{
	KeyPipelineDir, KeyPipelineScanInterval, KeySQLiteDir, KeySQLiteAppName,
	KeySQLiteKVName, KeySQLiteToken, KeySocketFile, KeyPIDFile, KeyLogFile,
}

// Config is the typed settings record the rest of the daemon reads from.
type Config struct {
	PipelineDir          string
	PipelineScanInterval int // seconds
	SQLiteDir            string
	SQLiteAppName        string
	SQLiteKVName         string
	SQLiteToken          string
	SocketFile           string
	PIDFile              string
	LogFile              string
	HTTPProxy            string
	HTTPSProxy           string

	path string // the file actually loaded, for WriteToken's write-back
}

// DefaultLocations returns the ordered list of candidate config file paths.
// The last one that exists and is readable wins.
func DefaultLocations() []string {
	home, _ := os.UserHomeDir()
	locs := []string{filepath.Join("etc", "gluetube.cfg")}
	if home != "" {
		locs = append(locs, filepath.Join(home, ".gluetube", "etc", "gluetube.cfg"))
	}
	locs = append(locs, filepath.Join("/etc", "gluetube", "gluetube.cfg"))
	if env := os.Getenv("GLUETUBE_CONFIG"); env != "" {
		locs = append(locs, env)
	}
	return locs
}

// Load reads the last readable file among locations and parses it into a
// Config. Fails with a *errs.ConfigError if no file in locations is
// readable, or if a required key is missing.
func Load(locations []string) (*Config, error) {
	var chosen string
	for _, loc := range locations {
		if loc == "" {
			continue
		}
		if f, err := os.Open(loc); err == nil {
			_ = f.Close()
			chosen = loc
		}
	}
	if chosen == "" {
		return nil, &errs.ConfigError{Op: "load", Err: fmt.Errorf("no config file found in %v", locations)}
	}

	f, err := ini.Load(chosen)
	if err != nil {
		return nil, &errs.ConfigError{Op: "parse", Err: err}
	}
	sec := f.Section("")

	for _, k := range requiredKeys {
		if !sec.HasKey(k) {
			return nil, &errs.ConfigError{Op: "parse", Err: fmt.Errorf("missing required key %q", k)}
		}
	}

	interval, err := strconv.Atoi(sec.Key(KeyPipelineScanInterval).String())
	if err != nil {
		return nil, &errs.ConfigError{Op: "parse", Err: fmt.Errorf("%s: %w", KeyPipelineScanInterval, err)}
	}

	return &Config{
		PipelineDir:          sec.Key(KeyPipelineDir).String(),
		PipelineScanInterval: interval,
		SQLiteDir:            sec.Key(KeySQLiteDir).String(),
		SQLiteAppName:        sec.Key(KeySQLiteAppName).String(),
		SQLiteKVName:         sec.Key(KeySQLiteKVName).String(),
		SQLiteToken:          sec.Key(KeySQLiteToken).String(),
		SocketFile:           sec.Key(KeySocketFile).String(),
		PIDFile:              sec.Key(KeyPIDFile).String(),
		LogFile:              sec.Key(KeyLogFile).String(),
		HTTPProxy:            sec.Key(KeyHTTPProxy).String(),
		HTTPSProxy:           sec.Key(KeyHTTPSProxy).String(),
		path:                 chosen,
	}, nil
}

// WriteToken atomically rewrites SQLITE_TOKEN in the loaded config file,
// used by the rekey flow. Safe to call repeatedly with the same value.
func (c *Config) WriteToken(newToken string) error {
	if c.path == "" {
		return &errs.ConfigError{Op: "write_token", Err: fmt.Errorf("config was not loaded from a file")}
	}

	f, err := ini.Load(c.path)
	if err != nil {
		return &errs.ConfigError{Op: "write_token", Err: err}
	}
	f.Section("").Key(KeySQLiteToken).SetValue(newToken)

	tmp := c.path + ".tmp"
	if err := f.SaveTo(tmp); err != nil {
		return &errs.ConfigError{Op: "write_token", Err: err}
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return &errs.ConfigError{Op: "write_token", Err: err}
	}

	c.SQLiteToken = newToken
	return nil
}
