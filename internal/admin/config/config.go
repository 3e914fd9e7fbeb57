package config

import (
	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/database"
	"github.com/dmitrijs2005/tenantadmin/internal/storage"
)

// Config holds runtime settings for the tenantadmin CLI.
type Config struct {
	StorageType string
	BackupPath  string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	Driver string
	DSN    string

	Emulator bool
	Prod     bool
	Dev      bool

	AssumeYes bool
	Verbose   bool
	LogJSON   bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StorageType = storage.TypeLocal
	c.BackupPath = "./backups"
	c.S3Region = "us-east-1"
	c.Driver = database.DriverSQLite
	c.DSN = "file:tenantadmin.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays the config
// file named in args (if any) and the flags in args. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment resolves the target tag. When several are set, emulator wins
// over prod, and prod over dev.
func (c *Config) Environment() string {
	switch {
	case c.Emulator:
		return common.EnvEmulator
	case c.Prod:
		return common.EnvProd
	case c.Dev:
		return common.EnvDev
	default:
		return common.EnvUnknown
	}
}

func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Type:           c.StorageType,
		BasePath:       c.BackupPath,
		S3Bucket:       c.S3Bucket,
		S3Region:       c.S3Region,
		S3BaseEndpoint: c.S3Endpoint,
		S3AccessKey:    c.S3AccessKey,
		S3SecretKey:    c.S3SecretKey,
	}
}
