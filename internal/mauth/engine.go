// Package mauth implements the Authorization Engine: a process-wide
// role-to-permission-name cache answering has_permission queries.
package mauth

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/mvalue"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/pkg/mcache"
	"github.com/corebooks/erp-core/pkg/mlog"
	"github.com/corebooks/erp-core/pkg/mmetrics"
)

// ReloadChannel is the Redis pub/sub channel a sibling process listens
// on to learn a peer invalidated its cache.
const ReloadChannel = "auth:reload"

// Engine resolves whether (user_id, role_ids) grants a named permission.
// State is a single mutex-guarded map of role_id to the set of
// permission names that role carries, loaded lazily on first
// consultation per role.
type Engine struct {
	mu    sync.Mutex
	cache map[string]map[string]struct{}

	roles           *repository.Repository[*domain.Role]
	permissions     *repository.Repository[*domain.Permission]
	rolePermissions *repository.Repository[*domain.RolePermission]

	log      mlog.Logger
	metrics  *mmetrics.Registry
	notifier *mcache.Notifier
}

// New constructs an Engine with an empty cache. redis may be nil, in
// which case reload_cache only clears the local map.
func New(
	roles *repository.Repository[*domain.Role],
	permissions *repository.Repository[*domain.Permission],
	rolePermissions *repository.Repository[*domain.RolePermission],
	redisClient *redis.Client,
	log mlog.Logger,
	metrics *mmetrics.Registry,
) *Engine {
	if log == nil {
		log = mlog.Nop{}
	}

	return &Engine{
		cache:           make(map[string]map[string]struct{}),
		roles:           roles,
		permissions:     permissions,
		rolePermissions: rolePermissions,
		log:             log,
		metrics:         metrics,
		notifier:        mcache.NewNotifier(redisClient, ReloadChannel, log),
	}
}

// HasPermission implements the algorithm in 4.D: empty role_ids denies;
// otherwise each role is checked in order for the permission name
// itself, the ALL.Manage wildcard, or (for a ".View" permission) the
// ALL.Read wildcard.
func (e *Engine) HasPermission(ctx context.Context, userID string, roleIDs []string, permission string) (bool, error) {
	if len(roleIDs) == 0 {
		e.log.Warnf("mauth: user %s has no roles assigned", userID)
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	isView := strings.HasSuffix(permission, ".View")

	for _, roleID := range roleIDs {
		names, ok := e.cache[roleID]
		if !ok {
			loaded, err := e.loadPermissionsForRole(ctx, roleID)
			if err != nil {
				return false, err
			}

			e.cache[roleID] = loaded
			names = loaded

			if e.metrics != nil {
				e.metrics.AuthCacheMisses.Inc()
			}
		} else if e.metrics != nil {
			e.metrics.AuthCacheHits.Inc()
		}

		if _, ok := names[permission]; ok {
			e.log.Debugf("mauth: user %s granted %s via role %s", userID, permission, roleID)
			return true, nil
		}

		if _, ok := names[domain.WildcardManage]; ok {
			e.log.Debugf("mauth: user %s granted %s via ALL.Manage on role %s", userID, permission, roleID)
			return true, nil
		}

		if isView {
			if _, ok := names[domain.WildcardRead]; ok {
				e.log.Debugf("mauth: user %s granted %s via ALL.Read on role %s", userID, permission, roleID)
				return true, nil
			}
		}
	}

	e.log.Infof("mauth: user %s denied %s", userID, permission)

	return false, nil
}

// loadPermissionsForRole reads permission names for roleID from
// storage. A missing or non-Active role, or a non-Active permission,
// contributes nothing. Caller must hold e.mu.
func (e *Engine) loadPermissionsForRole(ctx context.Context, roleID string) (map[string]struct{}, error) {
	role, found, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	if !found || role.Status != domain.StatusActive {
		e.log.Warnf("mauth: role %s not found or not active, no permissions", roleID)
		return map[string]struct{}{}, nil
	}

	links, err := e.rolePermissions.Get(ctx, map[string]mvalue.Value{"role_id": mvalue.String(roleID)})
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(links))

	for _, link := range links {
		if link.Status != domain.StatusActive {
			continue
		}

		perm, found, err := e.permissionByName(ctx, link.PermissionName)
		if err != nil {
			return nil, err
		}

		if !found || perm.Status != domain.StatusActive {
			continue
		}

		out[link.PermissionName] = struct{}{}
	}

	e.log.Infof("mauth: loaded %d permissions for role %s", len(out), roleID)

	return out, nil
}

func (e *Engine) permissionByName(ctx context.Context, name string) (*domain.Permission, bool, error) {
	rows, err := e.permissions.Get(ctx, map[string]mvalue.Value{"name": mvalue.String(name)})
	if err != nil {
		return nil, false, err
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	return rows[0], true, nil
}

// ReloadCache clears the cache under the lock. Called by the service
// layer after any Role, Permission, or role-permission-link mutation
// commits; the next lookup re-populates on demand. If a Redis client is
// configured, also publishes on ReloadChannel so sibling processes
// invalidate their own in-memory cache.
func (e *Engine) ReloadCache(ctx context.Context) {
	e.mu.Lock()
	e.cache = make(map[string]map[string]struct{})
	e.mu.Unlock()

	e.log.Infof("mauth: cache cleared")

	if err := e.notifier.Publish(ctx); err != nil {
		e.log.Warnf("mauth: failed to publish reload notification: %v", err)
	}
}

// WatchRedisReload clears the local cache whenever a sibling process
// reports a mutation via the configured mcache.Notifier, without
// re-publishing (avoids an infinite notification loop). It runs until
// ctx is cancelled; a no-op if no Redis client was configured.
func (e *Engine) WatchRedisReload(ctx context.Context) {
	e.notifier.Watch(ctx, func() {
		e.mu.Lock()
		e.cache = make(map[string]map[string]struct{})
		e.mu.Unlock()

		e.log.Infof("mauth: cache cleared via redis notification")
	})
}
