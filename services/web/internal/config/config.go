package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working directory.
const ConfigPath = "config.yaml"

// ConfigPathEnv overrides ConfigPath.
const ConfigPathEnv = "ASKMYNOTES_CONFIG"

// Session store backends.
const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	NotesServiceURL      string        `yaml:"notesServiceURL"`
	NotesServiceKeyPath  string        `yaml:"notesServiceKeyPath"`
	NotesServiceAudience string        `yaml:"notesServiceAudience"`
	BackendTimeout       time.Duration `yaml:"backendTimeout"`

	AuthServiceURL string        `yaml:"authServiceURL"`
	AuthJWKSURL    string        `yaml:"authJwksURL"`
	JWTIssuer      string        `yaml:"jwtIssuer"`
	JWTAudience    string        `yaml:"jwtAudience"`
	JWTLeeway      time.Duration `yaml:"jwtLeeway"`
	AllowGuest     *bool         `yaml:"allowGuest"`

	SessionStore   string        `yaml:"sessionStore"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`
	RememberSecret string        `yaml:"rememberSecret"`
	RememberTTL    time.Duration `yaml:"rememberTTL"`
	CookieSecure   bool          `yaml:"cookieSecure"`

	WorkspaceIdleTimeout   time.Duration `yaml:"workspaceIdleTimeout"`
	WorkspaceSweepInterval time.Duration `yaml:"workspaceSweepInterval"`

	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`

	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`
	GuestRateLimitPerMinute    int `yaml:"guestRateLimitPerMinute"`

	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	UploadConcurrency int      `yaml:"uploadConcurrency"`
}

// GuestAllowed reports whether guest entry is enabled. Default true.
func (c FileConfig) GuestAllowed() bool {
	return c.AllowGuest == nil || *c.AllowGuest
}

// Load reads config from path (defaults to ASKMYNOTES_CONFIG, then config.yaml),
// applies env overrides and defaults, and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) error {
	str := map[string]*string{
		"WEB_PORT":               &cfg.Port,
		"LOG_LEVEL":              &cfg.LogLevel,
		"NOTES_SERVICE_URL":      &cfg.NotesServiceURL,
		"NOTES_SERVICE_KEY_PATH": &cfg.NotesServiceKeyPath,
		"NOTES_SERVICE_AUDIENCE": &cfg.NotesServiceAudience,
		"AUTH_SERVICE_URL":       &cfg.AuthServiceURL,
		"AUTH_JWKS_URL":          &cfg.AuthJWKSURL,
		"JWT_ISSUER":             &cfg.JWTIssuer,
		"JWT_AUDIENCE":           &cfg.JWTAudience,
		"WEB_SESSION_STORE":      &cfg.SessionStore,
		"WEB_REMEMBER_SECRET":    &cfg.RememberSecret,
		"REDIS_ADDR":             &cfg.RedisAddr,
		"REDIS_PASSWORD":         &cfg.RedisPassword,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"WEB_BACKEND_TIMEOUT": &cfg.BackendTimeout,
		"WEB_SESSION_TTL":     &cfg.SessionTTL,
		"WEB_REMEMBER_TTL":    &cfg.RememberTTL,
		"JWT_LEEWAY":          &cfg.JWTLeeway,

		"WEB_WORKSPACE_IDLE_TIMEOUT":   &cfg.WorkspaceIdleTimeout,
		"WEB_WORKSPACE_SWEEP_INTERVAL": &cfg.WorkspaceSweepInterval,
	}
	for key, dst := range durations {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"WEB_LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"WEB_REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
		"WEB_GUEST_RATE_LIMIT_PER_MINUTE":    &cfg.GuestRateLimitPerMinute,
		"WEB_UPLOAD_CONCURRENCY":             &cfg.UploadConcurrency,
	}
	for key, dst := range ints {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("WEB_MAX_UPLOAD_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("WEB_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	if v := os.Getenv("WEB_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("WEB_COOKIE_SECURE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CookieSecure = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("WEB_ALLOW_GUEST")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowGuest = &b
		}
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.BackendTimeout == 0 {
		cfg.BackendTimeout = 60 * time.Second
	}
	if cfg.NotesServiceAudience == "" {
		cfg.NotesServiceAudience = "askmynotes-notes"
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = SessionStoreRedis
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.RememberTTL == 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	if cfg.WorkspaceIdleTimeout == 0 {
		cfg.WorkspaceIdleTimeout = cfg.SessionTTL
	}
	if cfg.WorkspaceSweepInterval == 0 {
		cfg.WorkspaceSweepInterval = time.Minute
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.RegisterRateLimitPerMinute == 0 {
		cfg.RegisterRateLimitPerMinute = 5
	}
	if cfg.GuestRateLimitPerMinute == 0 {
		cfg.GuestRateLimitPerMinute = 20
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"pdf", "txt"}
	}
	cfg.AllowedExtensions = NormalizeExtensions(cfg.AllowedExtensions)
	if cfg.UploadConcurrency == 0 {
		cfg.UploadConcurrency = 4
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or WEB_PORT)")
	}
	if err := requireURL("notesServiceURL", cfg.NotesServiceURL); err != nil {
		return err
	}
	if err := requireURL("authServiceURL", cfg.AuthServiceURL); err != nil {
		return err
	}
	if len(cfg.RememberSecret) < 32 {
		return errors.New("config: rememberSecret must be at least 32 bytes (set in config.yaml or WEB_REMEMBER_SECRET)")
	}
	switch cfg.SessionStore {
	case SessionStoreRedis, SessionStoreMemory:
	default:
		return fmt.Errorf("config: sessionStore must be %q or %q", SessionStoreRedis, SessionStoreMemory)
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for distributed rate limiting")
	}
	if cfg.BackendTimeout < 0 || cfg.SessionTTL < 0 || cfg.RememberTTL < 0 || cfg.JWTLeeway < 0 ||
		cfg.WorkspaceIdleTimeout < 0 || cfg.WorkspaceSweepInterval < 0 {
		return errors.New("config: durations must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 || cfg.GuestRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.UploadConcurrency < 1 {
		return errors.New("config: uploadConcurrency must be >= 1")
	}
	return nil
}

func requireURL(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("config: %s is required (set in config.yaml)", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: %s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

// NormalizeExtensions lower-cases, strips dots, and dedupes.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]struct{}, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
