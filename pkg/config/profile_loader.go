package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeploymentProfile is an environment-specific configuration overlay, loaded
// from profile_<name>.yaml. Values set in a profile override the environment
// defaults from Load.
type DeploymentProfile struct {
	Name      string     `yaml:"name" json:"name"`
	StoreType string     `yaml:"store_type,omitempty" json:"store_type,omitempty"`
	Blob      BlobConfig `yaml:"blob" json:"blob"`
	RateLimit RateLimit  `yaml:"rate_limit" json:"rate_limit"`
}

// BlobConfig selects and configures the evidence blob backend.
type BlobConfig struct {
	Type     string `yaml:"type" json:"type"` // "fs" | "s3" | "gcs" | "memory"
	Bucket   string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Prefix   string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	DataDir  string `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
}

// RateLimit bounds per-IP request rates.
type RateLimit struct {
	RPS   int `yaml:"rps,omitempty" json:"rps,omitempty"`
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// LoadProfile loads a deployment profile YAML by name.
// It searches the profiles directory for profile_<name>.yaml.
func LoadProfile(profilesDir, name string) (*DeploymentProfile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if profile.Name == "" {
		profile.Name = name
	}

	return &profile, nil
}

// Apply overlays the profile's values onto cfg.
func (p *DeploymentProfile) Apply(cfg *Config) {
	if p.StoreType != "" {
		cfg.StoreType = p.StoreType
	}
	if p.Blob.Type != "" {
		cfg.Blob = p.Blob
	}
	if p.RateLimit.RPS > 0 {
		cfg.RateRPS = p.RateLimit.RPS
	}
	if p.RateLimit.Burst > 0 {
		cfg.RateBurst = p.RateLimit.Burst
	}
}
