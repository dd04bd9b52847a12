package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"datawatch/internal/bootstrap/config"
	"datawatch/internal/domain/check"
	"datawatch/internal/usecase/monitor"
)

// SizeConfig is the tunable configuration of DatabaseSizeCheck.
type SizeConfig struct {
	WarnBytes int64 `json:"warn_bytes"`
	CritBytes int64 `json:"crit_bytes"`
}

const (
	defaultWarnBytes = float64(64 << 20)
	defaultCritBytes = float64(256 << 20)
)

// DatabaseSizeCheck watches the size of the result store's own database file
// and flags it before it grows unbounded, typically a sign that the cleanup
// sweep stopped running.
type DatabaseSizeCheck struct {
	path     string
	resolver *monitor.ConfigResolver
}

func NewDatabaseSizeCheck(cfg config.Config, resolver *monitor.ConfigResolver) *DatabaseSizeCheck {
	return &DatabaseSizeCheck{
		path:     databaseFilePath(cfg.Database.DSN),
		resolver: resolver,
	}
}

func (c *DatabaseSizeCheck) Meta() check.Meta {
	return check.Meta{
		Title:    "database file size",
		RunEvery: "@every 24h",
	}
}

func (c *DatabaseSizeCheck) Generate(_ context.Context) ([]any, error) {
	if c.path == "" {
		return nil, nil
	}
	return []any{c.path}, nil
}

func (c *DatabaseSizeCheck) Check(ctx context.Context, payload any) (*check.Response, error) {
	path, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		// In-memory or not yet created databases have no size to watch.
		return nil, check.ErrSkipCheck
	}
	if err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}

	cfg, err := c.resolver.Config(ctx, c, payload)
	if err != nil {
		return nil, err
	}
	warn := configBytes(cfg, "warn_bytes", defaultWarnBytes)
	crit := configBytes(cfg, "crit_bytes", defaultCritBytes)

	size := float64(info.Size())
	resp := check.NewResponse()
	switch {
	case size >= crit:
		resp.SetStatus(check.StatusCritical)
	case size >= warn:
		resp.SetStatus(check.StatusWarning)
	default:
		resp.SetStatus(check.StatusOK)
	}
	resp.Set("size_bytes", info.Size())
	return resp, nil
}

func (c *DatabaseSizeCheck) Identifier(payload any) (string, error) {
	path, ok := payload.(string)
	if !ok {
		return "", fmt.Errorf("unexpected payload type %T", payload)
	}
	return path, nil
}

func (c *DatabaseSizeCheck) Payload(_ context.Context, identifier string) (any, error) {
	if identifier != c.path {
		return nil, check.ErrPayloadNotFound
	}
	return identifier, nil
}

func (c *DatabaseSizeCheck) PayloadDescription(payload any) string {
	return fmt.Sprintf("database file %v", payload)
}

func (c *DatabaseSizeCheck) DefaultConfig() map[string]any {
	return map[string]any{
		"warn_bytes": defaultWarnBytes,
		"crit_bytes": defaultCritBytes,
	}
}

func (c *DatabaseSizeCheck) ConfigPrototype() any {
	return &SizeConfig{}
}

// databaseFilePath strips the sqlite DSN down to the filesystem path it
// points at. In-memory DSNs have none.
func databaseFilePath(dsn string) string {
	path := strings.TrimSpace(dsn)
	if path == "" || path == ":memory:" {
		return ""
	}
	path = strings.TrimPrefix(path, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == ":memory:" {
		return ""
	}
	return path
}

func configBytes(cfg map[string]any, name string, fallback float64) float64 {
	switch value := cfg[name].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return fallback
	}
}
