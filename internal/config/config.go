package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config aggregates runtime configuration for the API and its collaborators.
type Config struct {
	ListenAddr       string
	LogLevel         string
	StoreBackend     string
	MySQLDSN         string
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	CORSAllowOrigin  string

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string

	FalKey            string
	FalBaseURL        string
	ReplicateToken    string
	ReplicateBaseURL  string
	ReplicateFaceSwap string
	ReplicateInstant  string
	DefaultPipeline   string
	RequestTimeout    time.Duration
	FetchMaxRetries   int
	PromptSuffix      string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const (
		defaultFalBaseURL       = "https://fal.run"
		defaultReplicateBaseURL = "https://api.replicate.com"
	)

	cfg := Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", StoreMySQL)),
		AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:   getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		CORSAllowOrigin:   getEnv("CORS_ALLOW_ORIGIN", "*"),
		AdminListenAddr:   os.Getenv("ADMIN_LISTEN_ADDR"),
		AdminUsername:     os.Getenv("ADMIN_USERNAME"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		FalBaseURL:        normalizeBaseURL(getEnv("FAL_BASE_URL", defaultFalBaseURL), defaultFalBaseURL),
		ReplicateBaseURL:  normalizeBaseURL(getEnv("REPLICATE_BASE_URL", defaultReplicateBaseURL), defaultReplicateBaseURL),
		ReplicateFaceSwap: os.Getenv("REPLICATE_FACESWAP_MODEL"),
		ReplicateInstant:  os.Getenv("REPLICATE_INSTANTID_MODEL"),
		DefaultPipeline:   getEnv("DEFAULT_PIPELINE", "fal-flux-faceswap"),
		RequestTimeout:    time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 120)),
		FetchMaxRetries:   getInt("FETCH_MAX_RETRIES", 2),
		PromptSuffix:      getEnv("PROMPT_SUFFIX", "photorealistic, high quality, detailed, professional photography"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          os.Getenv("S3_REGION"),
		S3AccessKey:       os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:       os.Getenv("S3_SECRET_KEY"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:    getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:          getEnv("S3_PREFIX", "shared-images"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.JWTAccessSecret = os.Getenv("JWT_ACCESS_SECRET")
	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	cfg.FalKey = os.Getenv("FAL_KEY")
	cfg.ReplicateToken = os.Getenv("REPLICATE_API_TOKEN")

	var missing []string
	switch cfg.StoreBackend {
	case StoreMySQL:
		if cfg.MySQLDSN == "" {
			missing = append(missing, "MYSQL_DSN")
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.JWTAccessSecret == "" {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}
	if cfg.JWTRefreshSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}
	if cfg.FalKey == "" {
		missing = append(missing, "FAL_KEY")
	}
	if cfg.ReplicateToken == "" {
		missing = append(missing, "REPLICATE_API_TOKEN")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if cfg.AdminListenAddr != "" {
		if cfg.AdminUsername == "" {
			missing = append(missing, "ADMIN_USERNAME")
		}
		if cfg.AdminPassword == "" {
			missing = append(missing, "ADMIN_PASSWORD")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// LoadDatabase reads only what the operator tooling needs: the store DSN.
func LoadDatabase() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}
	cfg := Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		MySQLDSN: os.Getenv("MYSQL_DSN"),
	}
	if cfg.MySQLDSN == "" {
		return Config{}, fmt.Errorf("missing required environment variables: [MYSQL_DSN]")
	}
	return cfg, nil
}

// normalizeBaseURL accepts bare hosts ("fal.run") and trims trailing slashes.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// loadEnvFile overlays the first .env candidate found. A missing file is not an
// error: deployed functions receive their variables from the platform.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
