package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the process configuration, read from the environment (and .env).
type Settings struct {
	Port    string
	GinMode string

	LogLevel  string
	LogFormat string

	PostgresURI    string
	PostgresDriver string // "pgx" (default) or "postgres" for lib/pq
	MaxOpenConns   int
	MaxIdleConns   int
	MigrationsPath string

	RedisAddr string

	MongoURI string
	MongoDB  string

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	CORSOrigins []string

	LoginRatePerMinute int
	LoginRateBurst     int
	LanguageCacheTTL   time.Duration
	StatsDefaultDays   int

	GCPProject  string
	GCPLocation string
	VertexModel string
	GCSBucket   string
	STTEnabled  bool

	AutoAnalyze     bool
	AnalysisWorkers int
}

func Load() (*Settings, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	redisAddr := firstNonEmpty(v.GetString("REDIS_ADDR"), v.GetString("REDIS_URI"), v.GetString("REDIS_URL"))

	s := &Settings{
		Port:    v.GetString("PORT"),
		GinMode: v.GetString("GIN_MODE"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		PostgresURI:    v.GetString("POSTGRES_URI"),
		PostgresDriver: strings.ToLower(v.GetString("POSTGRES_DRIVER")),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),

		RedisAddr: redisAddr,

		MongoURI: v.GetString("MONGO_URI"),
		MongoDB:  v.GetString("MONGO_DB"),

		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTIssuer:      v.GetString("JWT_ISSUER"),
		AccessTokenTTL: v.GetDuration("ACCESS_TOKEN_TTL"),

		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),

		LoginRatePerMinute: v.GetInt("LOGIN_RATE_PER_MINUTE"),
		LoginRateBurst:     v.GetInt("LOGIN_RATE_BURST"),
		LanguageCacheTTL:   v.GetDuration("LANGUAGE_CACHE_TTL"),
		StatsDefaultDays:   v.GetInt("STATS_DEFAULT_DAYS"),

		GCPProject:  v.GetString("GCP_PROJECT"),
		GCPLocation: v.GetString("GCP_LOCATION"),
		VertexModel: v.GetString("VERTEX_MODEL"),
		GCSBucket:   v.GetString("GCS_BUCKET"),
		STTEnabled:  v.GetBool("STT_ENABLED"),

		AutoAnalyze:     v.GetBool("AUTO_ANALYZE"),
		AnalysisWorkers: v.GetInt("ANALYSIS_WORKERS"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("POSTGRES_DRIVER", "pgx")
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")

	v.SetDefault("MONGO_DB", "convopilot")

	v.SetDefault("JWT_ISSUER", "convopilot")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")

	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8000")

	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("LOGIN_RATE_BURST", 5)
	v.SetDefault("LANGUAGE_CACHE_TTL", "1h")
	v.SetDefault("STATS_DEFAULT_DAYS", 30)

	v.SetDefault("GCP_LOCATION", "us-central1")
	v.SetDefault("VERTEX_MODEL", "gemini-1.5-flash")
	v.SetDefault("STT_ENABLED", false)
	v.SetDefault("AUTO_ANALYZE", true)
	v.SetDefault("ANALYSIS_WORKERS", 2)
}

func (s *Settings) validate() error {
	var errs []error
	if s.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI environment variable is not set"))
	}
	if s.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set"))
	}
	if s.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is not set"))
	}
	if s.PostgresDriver != "pgx" && s.PostgresDriver != "postgres" {
		errs = append(errs, errors.New("POSTGRES_DRIVER must be pgx or postgres"))
	}
	if s.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if s.StatsDefaultDays <= 0 {
		s.StatsDefaultDays = 30
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
