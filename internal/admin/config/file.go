package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/tenantadmin/internal/flagx"
	"gopkg.in/yaml.v3"
)

// fileConfig is the DTO for config files. Pointers tell absent keys apart
// from zero values.
type fileConfig struct {
	StorageType *string `json:"storage_type" yaml:"storage_type"`
	BackupPath  *string `json:"backup_path" yaml:"backup_path"`
	S3Bucket    *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region    *string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint  *string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey *string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey *string `json:"s3_secret_key" yaml:"s3_secret_key"`
	Driver      *string `json:"driver" yaml:"driver"`
	DSN         *string `json:"dsn" yaml:"dsn"`
	Emulator    *bool   `json:"emulator" yaml:"emulator"`
	Prod        *bool   `json:"prod" yaml:"prod"`
	Dev         *bool   `json:"dev" yaml:"dev"`
	AssumeYes   *bool   `json:"assume_yes" yaml:"assume_yes"`
	Verbose     *bool   `json:"verbose" yaml:"verbose"`
	LogJSON     *bool   `json:"log_json" yaml:"log_json"`
}

// parseFile overlays Config with the file named by -c/-config in args. No
// flag means no file.
func parseFile(cfg *Config, args []string) error {
	name := flagx.JsonConfigFlags(args)
	if name == "" {
		return nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.StorageType, fc.StorageType)
	setString(&cfg.BackupPath, fc.BackupPath)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3Endpoint, fc.S3Endpoint)
	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
	setString(&cfg.Driver, fc.Driver)
	setString(&cfg.DSN, fc.DSN)
	setBool(&cfg.Emulator, fc.Emulator)
	setBool(&cfg.Prod, fc.Prod)
	setBool(&cfg.Dev, fc.Dev)
	setBool(&cfg.AssumeYes, fc.AssumeYes)
	setBool(&cfg.Verbose, fc.Verbose)
	setBool(&cfg.LogJSON, fc.LogJSON)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
