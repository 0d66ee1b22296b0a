package config

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "IMIMARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "IMIMARKET_DB_DSN"
	EnvDBHost = "IMIMARKET_DB_HOST"
	EnvDBUser = "IMIMARKET_DB_USER"
	EnvDBName = "IMIMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
