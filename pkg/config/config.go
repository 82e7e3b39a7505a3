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

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Media          MediaConfig
	ARK            ARKConfig
	Publish        PublishConfig
	Reconstruction ReconstructionConfig
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
	Enabled  bool
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MediaConfig locates the on-disk media tree holding contributed images,
// previews and thumbnails.
type MediaConfig struct {
	Root             string
	ThumbnailMinDim  int
	ThumbnailQuality int
	ListingCacheTTL  time.Duration
}

// ARKConfig carries the name-assigning authority settings used when
// minting archival identifiers for successful runs.
type ARKConfig struct {
	NAAN         string
	Shoulder     string
	ResolverBase string
	Commitment   string
	NameLength   int
}

// PublishConfig points at the S3-compatible store receiving finished
// model artifacts. The published object URL becomes the ARK bound URL.
type PublishConfig struct {
	Enabled       bool
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// ReconstructionConfig governs the run scheduler and worker pool.
type ReconstructionConfig struct {
	Enabled           bool
	SweepSchedule     string
	MinImages         int
	WorkerConcurrency int
	WorkerRetries     int
	EngineCommand     string
}

const defaultCommitment = "This ARK was generated & is managed by the issuing heritage archive. " +
	"We are committed to maintaining this ARK as per our Terms of Use and Privacy Policy."

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
		Enabled:  v.GetBool("ENABLE_REDIS"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Media = MediaConfig{
		Root:             v.GetString("MEDIA_ROOT"),
		ThumbnailMinDim:  v.GetInt("MEDIA_THUMBNAIL_MIN_DIM"),
		ThumbnailQuality: v.GetInt("MEDIA_THUMBNAIL_QUALITY"),
		ListingCacheTTL:  parseDuration(v.GetString("MEDIA_LISTING_CACHE_TTL"), 5*time.Minute),
	}

	cfg.ARK = ARKConfig{
		NAAN:         v.GetString("ARK_NAAN"),
		Shoulder:     v.GetString("ARK_SHOULDER"),
		ResolverBase: v.GetString("ARK_RESOLVER_BASE"),
		Commitment:   v.GetString("ARK_COMMITMENT"),
		NameLength:   v.GetInt("ARK_NAME_LENGTH"),
	}

	cfg.Publish = PublishConfig{
		Enabled:       v.GetBool("ENABLE_PUBLISH"),
		Endpoint:      v.GetString("PUBLISH_ENDPOINT"),
		AccessKey:     v.GetString("PUBLISH_ACCESS_KEY"),
		SecretKey:     v.GetString("PUBLISH_SECRET_KEY"),
		Bucket:        v.GetString("PUBLISH_BUCKET"),
		Region:        v.GetString("PUBLISH_REGION"),
		UseSSL:        v.GetBool("PUBLISH_USE_SSL"),
		PublicBaseURL: v.GetString("PUBLISH_PUBLIC_BASE_URL"),
	}

	cfg.Reconstruction = ReconstructionConfig{
		Enabled:           v.GetBool("ENABLE_RECONSTRUCTION"),
		SweepSchedule:     v.GetString("RECONSTRUCTION_SWEEP_SCHEDULE"),
		MinImages:         v.GetInt("RECONSTRUCTION_MIN_IMAGES"),
		WorkerConcurrency: v.GetInt("RECONSTRUCTION_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("RECONSTRUCTION_WORKER_RETRIES"),
		EngineCommand:     v.GetString("RECONSTRUCTION_ENGINE_COMMAND"),
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
	v.SetDefault("DB_NAME", "arkmesh")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "arkmesh")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MEDIA_ROOT", "./media")
	v.SetDefault("MEDIA_THUMBNAIL_MIN_DIM", 400)
	v.SetDefault("MEDIA_THUMBNAIL_QUALITY", 60)
	v.SetDefault("MEDIA_LISTING_CACHE_TTL", "5m")

	v.SetDefault("ARK_NAAN", "99999")
	v.SetDefault("ARK_SHOULDER", "/fk4")
	v.SetDefault("ARK_RESOLVER_BASE", "https://n2t.net/ark:/")
	v.SetDefault("ARK_COMMITMENT", defaultCommitment)
	v.SetDefault("ARK_NAME_LENGTH", 8)

	v.SetDefault("ENABLE_PUBLISH", false)
	v.SetDefault("PUBLISH_ENDPOINT", "localhost:9000")
	v.SetDefault("PUBLISH_ACCESS_KEY", "")
	v.SetDefault("PUBLISH_SECRET_KEY", "")
	v.SetDefault("PUBLISH_BUCKET", "models")
	v.SetDefault("PUBLISH_REGION", "")
	v.SetDefault("PUBLISH_USE_SSL", false)
	v.SetDefault("PUBLISH_PUBLIC_BASE_URL", "http://localhost:9000")

	v.SetDefault("ENABLE_RECONSTRUCTION", false)
	v.SetDefault("RECONSTRUCTION_SWEEP_SCHEDULE", "0 2 * * *")
	v.SetDefault("RECONSTRUCTION_MIN_IMAGES", 25)
	v.SetDefault("RECONSTRUCTION_WORKER_CONCURRENCY", 1)
	v.SetDefault("RECONSTRUCTION_WORKER_RETRIES", 1)
	v.SetDefault("RECONSTRUCTION_ENGINE_COMMAND", "")
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
