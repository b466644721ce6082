package config

const (
	EnvPrefix = "AGM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AGM_DB_DSN"
	EnvDBHost = "AGM_DB_HOST"
	EnvDBUser = "AGM_DB_USER"
	EnvDBName = "AGM_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
