// Package config loads runtime configuration for the tenantadmin CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-s string     storage type: local or s3
//	-o string     base directory of the local backend
//	-b string     S3 bucket
//	-g string     S3 region
//	-e string     S3 endpoint (S3-compatible services)
//	-u string     S3 access key
//	-p string     S3 secret key
//	-driver name  directory database driver: sqlite or pgx
//	-d string     directory database DSN
//	-emulator     target the local emulator
//	-prod         target production
//	-dev          target development
//	-y            answer yes to every confirmation
//	-v            debug logging
//	-log-json     JSON log lines
//
// # File schema
//
//	{
//	  "storage_type": "s3",
//	  "backup_path": "./backups",
//	  "s3_bucket": "tenant-backups",
//	  "s3_region": "ap-northeast-1",
//	  "driver": "pgx",
//	  "dsn": "postgres://admin@localhost/tenants",
//	  "prod": true
//	}
//
// Fields left out of the file keep their default.
package config
