package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = "KASUWA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "KASUWA_DB_DSN"
	EnvDBHost = "KASUWA_DB_HOST"
	EnvDBUser = "KASUWA_DB_USER"
	EnvDBName = "KASUWA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
