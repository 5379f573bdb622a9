package xredis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects and pings the configured redis, it returns nil when redis is not configured.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	opts, err := newRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return client, nil
}

func newRedisOptions(cfg Config) (*redis.Options, error) {
	var (
		opts *redis.Options
		err  error
	)

	switch {
	case cfg.URL != "":
		opts, err = optionsFromURL(cfg.URL, cfg.TLSInsecureSkipVerify)
		if err != nil {
			return nil, err
		}
	case strings.TrimSpace(cfg.Addr) != "":
		opts = &redis.Options{Addr: strings.TrimSpace(cfg.Addr)}
	default:
		return nil, errors.New("redis addr or url is required")
	}

	// Config fields override URL credentials/DB when explicitly set
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != nil {
		opts.DB = *cfg.DB
	}

	if cfg.TLS {
		if opts.TLSConfig == nil {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}

		opts.TLSConfig.InsecureSkipVerify = cfg.TLSInsecureSkipVerify // #nosec G402 -- User explicitly controls this via config
	}

	if opts.TLSConfig == nil && cfg.TLSInsecureSkipVerify {
		return nil, errors.New("tls_insecure_skip_verify requires TLS to be enabled (tls=true or rediss://)")
	}

	opts.DialTimeout = cfg.DialTimeout
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	return opts, nil
}

// optionsFromURL parses redis:// and rediss:// URLs.
func optionsFromURL(raw string, insecureSkipVerify bool) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported redis scheme: %s (expected redis:// or rediss://)", u.Scheme)
	}

	if u.Host == "" {
		return nil, errors.New("redis url missing host")
	}

	opts := &redis.Options{Addr: u.Host}

	if u.User != nil {
		opts.Username = u.User.Username()
		if pwd, ok := u.User.Password(); ok {
			opts.Password = pwd
		}
	}

	if dbStr := strings.TrimPrefix(u.Path, "/"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db in url: %w", err)
		}

		opts.DB = db
	}

	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify, // #nosec G402 -- User explicitly controls this via config
		}
	}

	return opts, nil
}
