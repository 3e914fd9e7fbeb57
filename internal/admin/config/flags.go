package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/tenantadmin/internal/flagx"
)

// GlobalFlags lists the flags parseFlags understands, config file included.
var GlobalFlags = flagx.Spec{
	Value: []string{"-s", "-o", "-b", "-g", "-e", "-u", "-p", "-driver", "-d"},
	Bool:  []string{"-emulator", "-prod", "-dev", "-y", "-v", "-log-json"},
}.Merge(flagx.ConfigFileSpec)

// parseFlags populates Config fields from command-line flags. args may also
// hold command names, command flags and positionals; only the global flags
// are picked out.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, GlobalFlags)

	fs := flag.NewFlagSet("tenantadmin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ignored string
	fs.StringVar(&ignored, "c", "", "config file")
	fs.StringVar(&ignored, "config", "", "config file")

	fs.StringVar(&cfg.StorageType, "s", cfg.StorageType, "storage type (local|s3)")
	fs.StringVar(&cfg.BackupPath, "o", cfg.BackupPath, "local backup directory")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "e", cfg.S3Endpoint, "S3 endpoint")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "directory database driver (sqlite|pgx)")
	fs.StringVar(&cfg.DSN, "d", cfg.DSN, "directory database DSN")

	fs.BoolVar(&cfg.Emulator, "emulator", cfg.Emulator, "target the emulator")
	fs.BoolVar(&cfg.Prod, "prod", cfg.Prod, "target production")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "target development")
	fs.BoolVar(&cfg.AssumeYes, "y", cfg.AssumeYes, "skip confirmations")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "debug logging")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "JSON log output")

	return fs.Parse(args)
}
