package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Auth      AuthConfig
	LogLevel  string
	LogFormat string
}

type ServerConfig struct {
	Port          int
	ReadTimeout   int // seconds
	WriteTimeout  int // seconds
	IdleTimeout   int // seconds
	UploadTimeout int // seconds, replaces read/write timeouts for admin book uploads
	PublicURL     string
	CORSOrigins   []string
	// TrustProxy honours X-Forwarded-For and X-Real-IP from a reverse proxy.
	TrustProxy bool
}

type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// StorageConfig describes the local "pdf-books" bucket.
type StorageConfig struct {
	Path        string
	AutoCreate  bool
	MaxUploadMB int
}

type AuthConfig struct {
	KeyDir          string
	SessionTTLHours int
	AdminEmails     []string
	SignInRPS       float64
	SignInBurst     int
}

// Load creates a new Config from environment variables with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnvInt("PORT", 3001),
			ReadTimeout:   getEnvInt("READ_TIMEOUT", 15),
			WriteTimeout:  getEnvInt("WRITE_TIMEOUT", 60),
			IdleTimeout:   getEnvInt("IDLE_TIMEOUT", 60),
			UploadTimeout: getEnvInt("UPLOAD_TIMEOUT", 600),
			PublicURL:     strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3001"), "/"),
			CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"*"}),
			TrustProxy:    getEnvBool("TRUST_PROXY", false),
		},
		Database: DatabaseConfig{
			Path:            getEnv("DB_PATH", "techlib.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		},
		Storage: StorageConfig{
			Path:        getEnv("STORAGE_PATH", "./data/pdf-books"),
			AutoCreate:  getEnvBool("STORAGE_AUTO_CREATE", true),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 50),
		},
		Auth: AuthConfig{
			KeyDir:          getEnv("AUTH_KEY_DIR", "./data"),
			SessionTTLHours: getEnvInt("SESSION_TTL_HOURS", 168),
			AdminEmails:     getEnvList("ADMIN_EMAILS", nil),
			SignInRPS:       getEnvFloat("SIGNIN_RPS", 1),
			SignInBurst:     getEnvInt("SIGNIN_BURST", 5),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLHours) * time.Hour
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) * 1024 * 1024
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
