package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "BRIGHTCART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "BRIGHTCART_APP_ENV"
	EnvPort   = "BRIGHTCART_APP_PORT"

	EnvDBDSN  = "BRIGHTCART_DB_DSN"
	EnvDBHost = "BRIGHTCART_DB_HOST"
	EnvDBUser = "BRIGHTCART_DB_USER"
	EnvDBName = "BRIGHTCART_DB_NAME"

	EnvRedisURL = "BRIGHTCART_REDIS_URL"

	EnvJWTSecret = "BRIGHTCART_JWT_SECRET"
	EnvJWTIssuer = "BRIGHTCART_JWT_ISSUER"

	EnvCheckoutSuccessURL = "BRIGHTCART_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL  = "BRIGHTCART_CHECKOUT_CANCEL_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
