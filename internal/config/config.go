package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment    string
	HTTPPort       string
	DatabaseDriver string
	DatabaseDSN    string
	LogDir         string
	Debug          bool
	TrustedProxies []string

	// SecretKey signs admin session cookies. When unset a random key is
	// generated and SecretKeyGenerated is true; sessions then end on restart.
	SecretKey          string
	SecretKeyGenerated bool

	Honeypot   HoneypotConfig
	Admin      AdminConfig
	Redis      RedisConfig
	GeoIP      GeoIPConfig
	Notify     NotifyConfig
	Signatures Signatures
}

// HoneypotConfig holds the knobs of the decision pipeline.
type HoneypotConfig struct {
	RateLimit       int
	RatePeriod      time.Duration
	Tiers           []EscalationTier
	BlockByIP       bool
	StoreTimeout    time.Duration
	LookupTimeout   time.Duration
	ReverseDNS      bool
	RecentPathLimit int
	Scoring         ScoringConfig
}

// EscalationTier maps a minimum threat score to a block duration.
type EscalationTier struct {
	Name     string
	MinScore int
	Duration time.Duration
}

// ScoringConfig holds the weights and caps of the threat score.
type ScoringConfig struct {
	CountWeight        int
	CountCap           int
	SeverityWeight     int
	SeverityCap        int
	RecentHourBonus    int
	RecentDayBonus     int
	DiversityThreshold int
	DiversityBonus     int
	BlockHistoryBonus  int
	Max                int
}

// AdminConfig configures the operator login guard.
type AdminConfig struct {
	Password       string
	PasswordHash   string
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	SessionTimeout time.Duration
}

// RedisConfig points at the session store. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeoIPConfig locates the MaxMind databases and the proxy/Tor list.
type GeoIPConfig struct {
	Directory        string
	CacheTTL         time.Duration
	ProxyListPath    string
	ProxyListURL     string
	ProxyListRefresh string
}

// NotifyConfig lists escalation notification targets.
type NotifyConfig struct {
	URLs              []string
	PushoverApp       string
	PushoverRecipient string
}

// DefaultScoringConfig returns the stock score weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CountWeight:        2,
		CountCap:           30,
		SeverityWeight:     3,
		SeverityCap:        50,
		RecentHourBonus:    10,
		RecentDayBonus:     5,
		DiversityThreshold: 5,
		DiversityBonus:     10,
		BlockHistoryBonus:  15,
		Max:                100,
	}
}

// DefaultTiers returns the stock escalation tiers, highest first.
func DefaultTiers() []EscalationTier {
	return []EscalationTier{
		{Name: "high", MinScore: 85, Duration: 7 * 24 * time.Hour},
		{Name: "medium", MinScore: 60, Duration: 24 * time.Hour},
	}
}

// DefaultHoneypotConfig returns pipeline defaults.
func DefaultHoneypotConfig() HoneypotConfig {
	return HoneypotConfig{
		RateLimit:       5,
		RatePeriod:      60 * time.Second,
		Tiers:           DefaultTiers(),
		BlockByIP:       true,
		StoreTimeout:    3 * time.Second,
		LookupTimeout:   2 * time.Second,
		RecentPathLimit: 10,
		Scoring:         DefaultScoringConfig(),
	}
}

// DefaultAdminConfig returns admin guard defaults. No secret is configured.
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		MaxAttempts:    5,
		BaseBackoff:    5 * time.Minute,
		MaxBackoff:     24 * time.Hour,
		SessionTimeout: time.Hour,
	}
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Environment:    getEnv("HONEYPOT_ENV", "development"),
		HTTPPort:       getEnv("HONEYPOT_HTTP_PORT", "8080"),
		DatabaseDriver: strings.ToLower(getEnv("HONEYPOT_DB_DRIVER", "sqlite")),
		DatabaseDSN:    getEnv("HONEYPOT_DB_DSN", filepath.Join("data", "honeypot.db")),
		LogDir:         getEnv("HONEYPOT_LOG_DIR", filepath.Join("data", "logs")),
		Debug:          getEnvBool("HONEYPOT_DEBUG", false),
		TrustedProxies: splitList(os.Getenv("HONEYPOT_TRUSTED_PROXIES")),
		SecretKey:      os.Getenv("SECRET_KEY"),
	}

	hp := DefaultHoneypotConfig()
	hp.RateLimit = getEnvInt("HONEYPOT_RATE_LIMIT", hp.RateLimit)
	hp.RatePeriod = time.Duration(getEnvInt("HONEYPOT_RATE_PERIOD", int(hp.RatePeriod/time.Second))) * time.Second
	hp.Tiers = []EscalationTier{
		{
			Name:     "high",
			MinScore: getEnvInt("HONEYPOT_BLOCK_HIGH_SCORE", hp.Tiers[0].MinScore),
			Duration: getEnvDuration("HONEYPOT_BLOCK_HIGH_DURATION", hp.Tiers[0].Duration),
		},
		{
			Name:     "medium",
			MinScore: getEnvInt("HONEYPOT_BLOCK_MEDIUM_SCORE", hp.Tiers[1].MinScore),
			Duration: getEnvDuration("HONEYPOT_BLOCK_MEDIUM_DURATION", hp.Tiers[1].Duration),
		},
	}
	hp.BlockByIP = getEnvBool("HONEYPOT_BLOCK_BY_IP", hp.BlockByIP)
	hp.StoreTimeout = getEnvDuration("HONEYPOT_STORE_TIMEOUT", hp.StoreTimeout)
	hp.LookupTimeout = getEnvDuration("HONEYPOT_LOOKUP_TIMEOUT", hp.LookupTimeout)
	hp.ReverseDNS = getEnvBool("HONEYPOT_REVERSE_DNS", false)
	cfg.Honeypot = hp

	admin := DefaultAdminConfig()
	admin.Password = os.Getenv("HONEYPOT_ADMIN_PASSWORD")
	admin.PasswordHash = os.Getenv("HONEYPOT_ADMIN_PASSWORD_HASH")
	admin.MaxAttempts = getEnvInt("HONEYPOT_ADMIN_MAX_ATTEMPTS", admin.MaxAttempts)
	admin.BaseBackoff = getEnvDuration("HONEYPOT_ADMIN_BASE_BACKOFF", admin.BaseBackoff)
	admin.MaxBackoff = getEnvDuration("HONEYPOT_ADMIN_MAX_BACKOFF", admin.MaxBackoff)
	admin.SessionTimeout = getEnvDuration("HONEYPOT_ADMIN_SESSION_TIMEOUT", admin.SessionTimeout)
	cfg.Admin = admin

	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	cfg.GeoIP = GeoIPConfig{
		Directory:        getEnv("GEOIP_DB_DIRECTORY", filepath.Join("data", "geoip")),
		CacheTTL:         getEnvDuration("GEOIP_CACHE_TTL", time.Hour),
		ProxyListPath:    os.Getenv("PROXY_LIST_PATH"),
		ProxyListURL:     os.Getenv("PROXY_LIST_URL"),
		ProxyListRefresh: getEnv("PROXY_LIST_REFRESH", "@every 6h"),
	}

	cfg.Notify = NotifyConfig{
		URLs:              splitList(os.Getenv("HONEYPOT_NOTIFY_URLS")),
		PushoverApp:       os.Getenv("PUSHOVER_APP"),
		PushoverRecipient: os.Getenv("PUSHOVER_RECIPIENT"),
	}

	sigs, err := LoadSignatures(os.Getenv("HONEYPOT_SIGNATURES_FILE"))
	if err != nil {
		return Config{}, err
	}
	cfg.Signatures = sigs

	if cfg.SecretKey == "" {
		key, err := randomKey()
		if err != nil {
			return Config{}, fmt.Errorf("generate secret key: %w", err)
		}
		cfg.SecretKey = key
		cfg.SecretKeyGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseDSN), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.Honeypot.RateLimit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.Honeypot.RatePeriod <= 0 {
		return errors.New("rate period must be positive")
	}
	for _, t := range c.Honeypot.Tiers {
		if t.Duration <= 0 {
			return fmt.Errorf("escalation tier %q has no duration", t.Name)
		}
	}
	if c.Admin.MaxAttempts <= 0 {
		return errors.New("admin max attempts must be positive")
	}
	return nil
}

// SortedTiers returns the tiers ordered by descending minimum score.
func (h HoneypotConfig) SortedTiers() []EscalationTier {
	tiers := make([]EscalationTier, len(h.Tiers))
	copy(tiers, h.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinScore > tiers[j].MinScore })
	return tiers
}

// LowestTierScore returns the smallest score that triggers a block, or -1 when no tier exists.
func (h HoneypotConfig) LowestTierScore() int {
	lowest := -1
	for _, t := range h.Tiers {
		if lowest == -1 || t.MinScore < lowest {
			lowest = t.MinScore
		}
	}
	return lowest
}

// IsProduction reports whether the environment is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "24h") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
