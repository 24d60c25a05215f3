package config

const (
	// EnvPrefix namespaces every environment variable read by this service.
	EnvPrefix = "GROUPBUY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GROUPBUY_DB_DSN"
	EnvDBHost = "GROUPBUY_DB_HOST"
	EnvDBUser = "GROUPBUY_DB_USER"
	EnvDBName = "GROUPBUY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
