// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config aggregates application configuration values.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	PGDSN           string
	RateBurst       int
	RatePerSec      float64
	MaxBodyBytes    int64
	BcryptCost      int
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustedProxies  []netip.Prefix
	AutoMigrate     bool
}

const (
	defaultHTTPAddr        = ":8080"
	defaultGRPCAddr        = ":9090"
	defaultRateBurst       = 20
	defaultRatePerSec      = 10
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Load reads configuration from environment variables, applying defaults.
// A .env file in the working directory is loaded first when present; values
// already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration without touching .env files.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:        valueOrDefault("XYZ_HTTP_ADDR", defaultHTTPAddr),
		GRPCAddr:        valueOrDefault("XYZ_GRPC_ADDR", defaultGRPCAddr),
		PGDSN:           os.Getenv("XYZ_PG_DSN"),
		AllowedOrigins:  splitCSV(os.Getenv("XYZ_ALLOWED_ORIGINS")),
		ShutdownTimeout: defaultShutdownTimeout,
	}

	var err error
	if cfg.RateBurst, err = parseInt("XYZ_RATE_BURST", defaultRateBurst); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = parseInt("XYZ_BCRYPT_COST", bcrypt.DefaultCost); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("XYZ_BCRYPT_COST %d is out of range", cfg.BcryptCost)
	}

	cfg.RatePerSec = defaultRatePerSec
	if v := os.Getenv("XYZ_RATE_PER_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid XYZ_RATE_PER_SEC: %w", err)
		}
		cfg.RatePerSec = f
	}

	cfg.MaxBodyBytes = defaultMaxBodyBytes
	if v := os.Getenv("XYZ_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid XYZ_MAX_BODY_BYTES value %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	if cfg.TrustedProxies, err = parseProxies(os.Getenv("XYZ_TRUSTED_PROXIES")); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("XYZ_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid XYZ_AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = b
	}

	if v := os.Getenv("XYZ_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid XYZ_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

// parseProxies accepts a CSV of CIDRs or bare addresses.
func parseProxies(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range splitCSV(v) {
		if p, err := netip.ParsePrefix(item); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid XYZ_TRUSTED_PROXIES entry %q", item)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
