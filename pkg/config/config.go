package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	SMTP         SMTPConfig
	Moderation   ModerationConfig
	Verification VerificationConfig
	Stats        StatsConfig
	Consents     ConsentsConfig
	Questions    QuestionsConfig
	Admin        AdminConfig
	CORS         CORSConfig
	Log          LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SMTPConfig configures outbound verification-code mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// ModerationConfig configures the external comment classifier.
// An empty APIKey disables the external stage entirely.
type ModerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// VerificationConfig tunes the one-time-code issuer.
type VerificationConfig struct {
	ResendInterval time.Duration
	CodeTTL        time.Duration
}

// StatsConfig governs the aggregate-statistics cache.
type StatsConfig struct {
	CacheTTL time.Duration
}

// ConsentsConfig locates the opaque consent-proof blob store.
type ConsentsConfig struct {
	StorageDir string
}

// QuestionsConfig maps the well-known questions to their stable
// identifiers in the seeded catalog, resolved once at startup.
type QuestionsConfig struct {
	FullNameID  int
	CadastralID int
	EmailID     int
	PhoneID     int
	CommentsID  int
}

// AdminConfig secures the moderation-override and export endpoints.
type AdminConfig struct {
	JWTSecret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
		Subject:  v.GetString("SMTP_SUBJECT"),
	}

	cfg.Moderation = ModerationConfig{
		APIKey:  v.GetString("MODERATION_API_KEY"),
		BaseURL: v.GetString("MODERATION_BASE_URL"),
		Model:   v.GetString("MODERATION_MODEL"),
		Timeout: parseDuration(v.GetString("MODERATION_TIMEOUT"), 10*time.Second),
	}

	cfg.Verification = VerificationConfig{
		ResendInterval: parseDuration(v.GetString("VERIFICATION_RESEND_INTERVAL"), 120*time.Second),
		CodeTTL:        parseDuration(v.GetString("VERIFICATION_CODE_TTL"), 10*time.Minute),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Consents = ConsentsConfig{
		StorageDir: v.GetString("CONSENTS_STORAGE_DIR"),
	}

	cfg.Questions = QuestionsConfig{
		FullNameID:  v.GetInt("QUESTION_FULL_NAME_ID"),
		CadastralID: v.GetInt("QUESTION_CADASTRAL_ID"),
		EmailID:     v.GetInt("QUESTION_EMAIL_ID"),
		PhoneID:     v.GetInt("QUESTION_PHONE_ID"),
		CommentsID:  v.GetInt("QUESTION_COMMENTS_ID"),
	}

	cfg.Admin = AdminConfig{
		JWTSecret: v.GetString("ADMIN_JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "resident_survey")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "noreply@localhost")
	v.SetDefault("SMTP_SUBJECT", "Код подтверждения — опрос жителей")

	v.SetDefault("MODERATION_API_KEY", "")
	v.SetDefault("MODERATION_BASE_URL", "https://api.deepseek.com")
	v.SetDefault("MODERATION_MODEL", "deepseek-chat")
	v.SetDefault("MODERATION_TIMEOUT", "10s")

	v.SetDefault("VERIFICATION_RESEND_INTERVAL", "120s")
	v.SetDefault("VERIFICATION_CODE_TTL", "10m")

	v.SetDefault("STATS_CACHE_TTL", "10m")

	v.SetDefault("CONSENTS_STORAGE_DIR", "./consents")

	v.SetDefault("QUESTION_FULL_NAME_ID", 1)
	v.SetDefault("QUESTION_CADASTRAL_ID", 2)
	v.SetDefault("QUESTION_EMAIL_ID", 3)
	v.SetDefault("QUESTION_PHONE_ID", 4)
	v.SetDefault("QUESTION_COMMENTS_ID", 16)

	v.SetDefault("ADMIN_JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
