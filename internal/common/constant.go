package common

// TenantsCollection is the top-level collection holding tenant root documents.
const TenantsCollection = "Companies"

// Environment tags recorded in artifact metadata.
const (
	EnvEmulator = "emulator"
	EnvProd     = "prod"
	EnvDev      = "dev"
	EnvUnknown  = "unknown"
)
