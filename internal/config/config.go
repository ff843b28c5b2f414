package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	CodeTTL     time.Duration // verification-code lifetime
	LockLease   time.Duration // lock lease before a crashed holder is evicted
	LockAcquire time.Duration // how long a merge waits on a contended lock

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion      string
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Citizens          string
	VerificationCodes string
	LinkRequests      string
	ClusterMembers    string
	Locks             string
	ThirdPartyApps    string
	EmailLogs         string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Citizens:          getEnv("DYNAMO_TABLE_CITIZENS", "citizens"),
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
			LinkRequests:      getEnv("DYNAMO_TABLE_LINK_REQUESTS", "link_requests"),
			ClusterMembers:    getEnv("DYNAMO_TABLE_CLUSTER_MEMBERS", "cluster_members"),
			Locks:             getEnv("DYNAMO_TABLE_LOCKS", "locks"),
			ThirdPartyApps:    getEnv("DYNAMO_TABLE_THIRD_PARTY_APPS", "third_party_apps"),
			EmailLogs:         getEnv("DYNAMO_TABLE_EMAIL_LOGS", "email_logs"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		CodeTTL:     time.Duration(getEnvInt("CODE_TTL_MINUTES", 5)) * time.Minute,
		LockLease:   time.Duration(getEnvInt("LOCK_LEASE_SECONDS", 30)) * time.Second,
		LockAcquire: time.Duration(getEnvInt("LOCK_ACQUIRE_MILLIS", 2000)) * time.Millisecond,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
