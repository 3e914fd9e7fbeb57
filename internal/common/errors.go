// Package common defines sentinel errors and small helpers shared by the
// stores, the backup engine and the CLI. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrBatchTooLarge   = errors.New("batch exceeds maximum size")

	// Tenant errors.
	ErrTenantNotFound = errors.New("tenant not found")

	// Identity claim errors.
	ErrUnknownClaim = errors.New("unknown claim")

	// Configuration errors.
	ErrUnknownStorageType = errors.New("unknown storage type")
	ErrUnknownDriver      = errors.New("unknown database driver")
)
