package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

type Config struct {
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DBType     string `env:"DB_TYPE" envDefault:"sqlite"`
	DSNURL     string `env:"DB_DSN" envDefault:""`
	DBUser     string `env:"DB_USER" envDefault:""`
	DBPassword string `env:"DB_PASSWORD" envDefault:""`
	DBAddr     string `env:"DB_ADDR" envDefault:""`
	DBName     string `env:"DB_NAME" envDefault:"civicportal"`
	DBPath     string `env:"DB_PATH" envDefault:"datas/civicportal.db"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`

	// 会话配置
	SessionStore         string        `env:"SESSION_STORE" envDefault:"sql"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SessionCookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"app_session"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	RedisURL             string        `env:"REDIS_URL" envDefault:""`
	RedisKeyPrefix       string        `env:"REDIS_KEY_PREFIX" envDefault:"session:"`

	// 邀请 / 设置密码链接
	// 无默认值，必须显式配置
	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"civicportal"`
	InviteTTL time.Duration `env:"INVITE_TTL" envDefault:"72h"`

	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:""`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:""`
	AdminName     string `env:"ADMIN_NAME" envDefault:"Administrator"`

	// OIDC single sign-on, disabled unless OIDC_DISCOVERY_URL is set.
	OIDCDiscoveryURL string `env:"OIDC_DISCOVERY_URL"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`
	OIDCScope        string `env:"OIDC_SCOPE" envDefault:"openid email profile"`

	OTELEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure    bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"civicportal"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/avatars"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`
}

// ParseConfig loads an optional .env file, then the process environment.
func ParseConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			logrus.WithError(err).Error("godotenv.Load error")
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	Conf.normalize()
	if err := Conf.Validate(); err != nil {
		return Config{}, err
	}
	return Conf, nil
}

func (c *Config) normalize() {
	c.DBType = strings.ToLower(strings.TrimSpace(c.DBType))
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.SessionCookieName = strings.TrimSpace(c.SessionCookieName)
	c.AdminEmail = strings.ToLower(strings.TrimSpace(c.AdminEmail))
	if c.SessionCookieName == "" {
		c.SessionCookieName = "app_session"
	}
}

// Validate reports configuration that would make the server unusable.
func (c Config) Validate() error {
	switch c.DBType {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	case "mysql", "postgres":
		if strings.TrimSpace(c.DSNURL) == "" && strings.TrimSpace(c.DBAddr) == "" {
			return fmt.Errorf("DB_DSN or DB_ADDR is required for %s", c.DBType)
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}

	switch c.SessionStore {
	case SessionStoreSQL:
	case SessionStoreRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}

	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	secret := strings.TrimSpace(c.JWTSecret)
	switch {
	case secret == "":
		return errors.New("JWT_SECRET is required")
	case isPlaceholderSecret(secret):
		return errors.New("JWT_SECRET must not be a placeholder value")
	case len(secret) < 16:
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.OIDCEnabled() {
		if c.OIDCClientID == "" || c.OIDCClientSecret == "" || c.OIDCRedirectURL == "" {
			return errors.New("OIDC_CLIENT_ID, OIDC_CLIENT_SECRET and OIDC_REDIRECT_URL are required when OIDC is enabled")
		}
	}
	return nil
}

// isPlaceholderSecret catches sample values copied from docs and .env templates.
func isPlaceholderSecret(secret string) bool {
	lower := strings.ToLower(secret)
	for _, marker := range []string{"change-me", "changeme", "change_me", "replace-me", "your-secret"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (c Config) OIDCEnabled() bool {
	return strings.TrimSpace(c.OIDCDiscoveryURL) != ""
}

// ConfigureLogger applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c Config) ConfigureLogger() {
	if strings.EqualFold(c.LogFormat, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithField("log_level", c.LogLevel).Warn("invalid log level, falling back to info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
