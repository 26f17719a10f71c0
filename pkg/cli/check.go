package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/config"
	"github.com/platinummonkey/gatehouse/pkg/matrix"
	"github.com/platinummonkey/gatehouse/pkg/membership"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/permcache"
	"github.com/platinummonkey/gatehouse/pkg/roles"
)

func newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Run one permission check against the live database",
		Flags:       flag.NewFlagSet("check", flag.ExitOnError),
	}

	workspaceID := cmd.Flags.String("workspace", "", "Workspace ID")
	userID := cmd.Flags.String("user", "", "User ID")
	resource := cmd.Flags.String("resource", "", "Resource type (e.g. projects)")
	permission := cmd.Flags.String("permission", "", "Permission (e.g. view)")
	noCache := cmd.Flags.Bool("no-cache", false, "Bypass the permission cache")
	timeout := cmd.Flags.Duration("timeout", 10*time.Second, "Check timeout")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *workspaceID == "" || *userID == "" || *resource == "" || *permission == "" {
			return fmt.Errorf("workspace, user, resource, and permission are required")
		}
		res := catalog.ResourceType(*resource)
		perm := catalog.Permission(*permission)
		if !catalog.ValidPermission(res, perm) {
			return fmt.Errorf("unknown permission %s:%s", res, perm)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		log := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)
		engine := matrix.NewEngine(roles.NewStore(db), membership.NewStore(db), nil, nil, nil, log)

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		source := "engine"
		var granted bool
		if *noCache {
			granted, err = engine.CheckPermission(ctx, *userID, *workspaceID, res, perm)
		} else {
			backend, berr := openCacheBackend(cfg)
			if berr != nil {
				return berr
			}
			cache := permcache.New(backend, engine, nil, log)
			defer cache.Close()
			source = "cache"
			granted, err = cache.Check(ctx, *userID, *workspaceID, res, perm)
		}
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		out := map[string]interface{}{
			"workspace_id": *workspaceID,
			"user_id":      *userID,
			"resource":     *resource,
			"permission":   *permission,
			"granted":      granted,
			"source":       source,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return cmd
}

// openCacheBackend builds the configured cache backend.
func openCacheBackend(cfg *config.Config) (permcache.Backend, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return permcache.NewMemoryBackend(cfg.Cache.MemorySize, permcache.PermissionTTL), nil
	default:
		backend, err := permcache.NewRedisBackend(cfg.Cache.RedisURL, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, falling back to in-memory cache")
			return permcache.NewMemoryBackend(cfg.Cache.MemorySize, permcache.PermissionTTL), nil
		}
		return backend, nil
	}
}
