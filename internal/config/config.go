// Package config reads the process environment into one struct so the
// commands do not each dig through os.Getenv.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sasagram/streamlog/internal/domain"
)

var (
	defaultWatchAlsoTwitch = []string{"rostikfacekid", "poisonika", "tankzor", "formixyouknow", "narekcr", "r4dom1r", "yurapivo"}
	defaultWatchAlsoKick   = []string{"helin139ban"}
)

// databaseURLKeys are checked in order; hosting providers export different names.
var databaseURLKeys = []string{
	"DATABASE_URL",
	"POSTGRES_PRISMA_URL",
	"POSTGRES_URL",
	"POSTGRES_URL_NON_POOLING",
	"DATABASE_URL_UNPOOLED",
}

type Twitch struct {
	ClientID     string
	ClientSecret string
	Username     string
}

type Kick struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	AuthURL      string
}

type Config struct {
	Env         string
	Port        int
	DatabaseURL string
	RedisURL    string
	StatsdURL   string

	Twitch Twitch
	Kick   Kick

	WatchAlsoTwitch []string
	WatchAlsoKick   []string

	TimelineLocation *time.Location
	MediaCacheTTL    time.Duration
	UpstreamTimeout  time.Duration
	DBQueryTimeout   time.Duration
}

// Getenv matches os.Getenv and lets tests feed a map instead.
type Getenv func(string) string

func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(getenv Getenv) (*Config, error) {
	cfg := &Config{
		Env:       getenv("ENV"),
		RedisURL:  getenv("REDIS_URL"),
		StatsdURL: getenv("STATSD_URL"),
		Twitch: Twitch{
			ClientID:     getenv("TWITCH_CLIENT_ID"),
			ClientSecret: getenv("TWITCH_CLIENT_SECRET"),
			Username:     withDefault(getenv("TWITCH_USERNAME"), "sasavot"),
		},
		Kick: Kick{
			APIKey:       getenv("KICK_API_KEY"),
			ClientID:     getenv("KICK_CLIENT_ID"),
			ClientSecret: getenv("KICK_CLIENT_SECRET"),
			AuthURL:      getenv("KICK_AUTH_URL"),
		},
		WatchAlsoTwitch: list(getenv("WATCH_ALSO_TWITCH"), defaultWatchAlsoTwitch),
		WatchAlsoKick:   list(getenv("WATCH_ALSO_KICK"), defaultWatchAlsoKick),
	}

	var err error
	if cfg.Port, err = intValue(getenv, "PORT", 4000); err != nil {
		return nil, err
	}
	if cfg.MediaCacheTTL, err = durationValue(getenv, "MEDIA_CACHE_TTL", domain.MediaCacheTTL); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = durationValue(getenv, "UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBQueryTimeout, err = durationValue(getenv, "DB_QUERY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	tz := withDefault(getenv("TIMELINE_TZ"), "Europe/Moscow")
	if cfg.TimelineLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TIMELINE_TZ: %w", err)
	}

	if cfg.DatabaseURL, err = databaseURL(getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env != ""
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func list(raw string, def []string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), def...)
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func intValue(getenv Getenv, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationValue(getenv Getenv, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

func firstOf(getenv Getenv, def string, keys ...string) string {
	for _, key := range keys {
		if v := getenv(key); v != "" {
			return v
		}
	}
	return def
}

func databaseURL(getenv Getenv) (string, error) {
	sslmode := getenv("PGSSLMODE")

	raw := firstOf(getenv, "", databaseURLKeys...)
	if raw == "" {
		u := &url.URL{
			Scheme: "postgres",
			User: url.UserPassword(
				firstOf(getenv, "postgres", "PGUSER", "POSTGRES_USER"),
				firstOf(getenv, "123", "PGPASSWORD", "POSTGRES_PASSWORD"),
			),
			Host: firstOf(getenv, "localhost", "PGHOST", "POSTGRES_HOST") + ":" + firstOf(getenv, "5432", "PGPORT", "POSTGRES_PORT"),
			Path: "/" + firstOf(getenv, "sasagram_streams", "PGDATABASE", "POSTGRES_DATABASE", "POSTGRES_DB"),
		}
		raw = u.String()
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("database url: %w", err)
	}

	if sslmode == "" && strings.Contains(u.Hostname(), "neon.tech") {
		sslmode = "require"
	}
	if sslmode != "" {
		q := u.Query()
		q.Set("sslmode", sslmode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
