package config

const (
	EnvPrefix = "SURPLUS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "SURPLUS_APP_ENV"
	EnvPort      = "SURPLUS_APP_PORT"
	EnvLogLevel  = "SURPLUS_LOG_LEVEL"
	EnvDBDSN     = "SURPLUS_DB_DSN"
	EnvDBHost    = "SURPLUS_DB_HOST"
	EnvDBUser    = "SURPLUS_DB_USER"
	EnvDBName    = "SURPLUS_DB_NAME"
	EnvDBPass    = "SURPLUS_DB_PASSWORD"
	EnvRedisURL  = "SURPLUS_REDIS_URL"
	EnvJWTSecret = "SURPLUS_JWT_SECRET"
	EnvJWTIssuer = "SURPLUS_JWT_ISSUER"

	EnvGCPProjectID          = "SURPLUS_GCP_PROJECT_ID"
	EnvPubSubEventsTopic     = "SURPLUS_PUBSUB_EVENTS_TOPIC"
	EnvPubSubNotificationSub = "SURPLUS_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvOracleBaseURL      = "SURPLUS_ORACLE_BASE_URL"
	EnvOracleMatchTimeout = "SURPLUS_ORACLE_MATCH_TIMEOUT"

	EnvMatchingRadius  = "SURPLUS_MATCHING_CANDIDATE_RADIUS_METERS"
	EnvMatchingCap     = "SURPLUS_MATCHING_CANDIDATE_CAP"
	EnvMatchingWorkers = "SURPLUS_MATCHING_WORKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
