// Foam
// Copyright (C) 2024+ the Foam contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the session-wide configuration spec §4.1/§4.7/§4.8
// reference: the default user and PATH, and the git/npm façades' network
// endpoints. It's loaded from YAML the way the teacher's deployment
// manifests are (gopkg.in/yaml.v2), not hand-rolled flag parsing.
package config

import (
	"gopkg.in/yaml.v2"

	"github.com/foam/foam/internal/errwrap"
	"github.com/foam/foam/internal/vfs"
)

// Config is the full session configuration, with defaults suitable for
// running entirely without a config file.
type Config struct {
	User string `yaml:"user"`
	Home string `yaml:"home"`
	Path string `yaml:"path"`

	GitRelayURL string `yaml:"gitRelayURL"`

	NPMRegistryURL string `yaml:"npmRegistryURL"`
	NPMCDNURL      string `yaml:"npmCDNURL"`
}

// Default returns the configuration Foam boots with when no config file is
// present.
func Default() *Config {
	return &Config{
		User:           "user",
		Home:           "/home/user",
		Path:           "/bin:/usr/bin",
		NPMRegistryURL: "https://registry.npmjs.org",
		NPMCDNURL:      "https://cdn.jsdelivr.net/npm",
	}
}

// Load parses YAML config text over the defaults.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errwrap.Wrapf(err, "parsing config")
	}
	return cfg, nil
}

// LoadFromVFS reads path (typically /etc/foam/config.yaml) through the
// virtual filesystem, returning defaults unchanged if the file doesn't
// exist (spec §4.1: config is ambient, not a hard requirement).
func LoadFromVFS(v vfs.Promises, path string) (*Config, error) {
	data, err := v.ReadFile(path, vfs.ReadFileOptions{})
	if err != nil {
		if vfs.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(data)
}
