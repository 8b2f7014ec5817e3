// Package facade implements the Security Facade: the single
// composition root a hosting application talks to, bundling the
// Authorization Engine, Audit Recorder, Event Bus, Connection Pool,
// every ledger service, and the identity stack that resolves a bearer
// token into the (user_id, role_ids) pair those services consult.
//
// Grounded on the teacher's internal/services/command.UseCase, which
// aggregates every adapter a command handler needs behind one struct
// rather than having each handler wire its own dependencies.
package facade

import (
	"context"

	"github.com/corebooks/erp-core/internal/audit"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/identity"
	"github.com/corebooks/erp-core/internal/ledger"
	"github.com/corebooks/erp-core/internal/mauth"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/transactional"
	"github.com/corebooks/erp-core/pkg/mcasdoor"
	"github.com/corebooks/erp-core/pkg/merrors"
	"github.com/corebooks/erp-core/pkg/mlog"
	"github.com/corebooks/erp-core/pkg/mmetrics"
)

// Facade is the capability surface a hosting application (an HTTP
// handler layer, a gRPC service, a CLI) is handed after bootstrap.
// Everything reachable from it has already been wired against the
// same Connection Pool and Authorization Engine.
type Facade struct {
	Auth     *mauth.Engine
	AuditLog *audit.Recorder
	Events   *eventbus.Bus
	Pool     *mdb.ConnectionPool
	Identity *identity.Resolver
	Casdoor  *mcasdoor.CasdoorConnection

	Ledger *ledger.Service

	log mlog.Logger
}

// Deps collects the already-constructed collaborators New wires
// together. Callers build these bottom-up (pool, then auth/audit/
// events, then a transactional.Context, then feature services) and
// hand the finished set to New.
type Deps struct {
	Auth     *mauth.Engine
	AuditLog *audit.Recorder
	Events   *eventbus.Bus
	Pool     *mdb.ConnectionPool
	Casdoor  *mcasdoor.CasdoorConnection
	Log      mlog.Logger
	Metrics  *mmetrics.Registry
}

// New builds the TransactionalContext every feature service composes
// with, constructs those services against it, and returns the
// assembled Facade. There is no cycle to break here: feature services
// only ever need the TransactionalContext's three primitives, never a
// back-reference to the Facade itself, so construction is a single
// straight-line pass rather than a two-phase wire-then-populate dance.
func New(d Deps) *Facade {
	log := d.Log
	if log == nil {
		log = mlog.Nop{}
	}

	tc := transactional.New(d.Auth, d.AuditLog, d.Pool, d.Events, log, d.Metrics)

	f := &Facade{
		Auth:     d.Auth,
		AuditLog: d.AuditLog,
		Events:   d.Events,
		Pool:     d.Pool,
		Casdoor:  d.Casdoor,
		Ledger:   ledger.New(tc, d.Pool, log, d.Metrics),
		log:      log,
	}

	if d.Casdoor != nil {
		f.Identity = identity.New(d.Casdoor)
	}

	return f
}

// HasPermission is a convenience passthrough so a hosting application
// can gate a route without reaching into the Authorization Engine
// directly.
func (f *Facade) HasPermission(ctx context.Context, userID string, roleIDs []string, permission string) (bool, error) {
	return f.Auth.HasPermission(ctx, userID, roleIDs, permission)
}

// Resolve turns a bearer token into the (user_id, role_ids) pair every
// ledger operation requires, delegating to the identity Resolver. It
// returns an error if no Casdoor connection was configured, since a
// Facade without one cannot authenticate anybody.
func (f *Facade) Resolve(ctx context.Context, token string) (userID string, roleIDs []string, err error) {
	if f.Identity == nil {
		return "", nil, merrors.New(merrors.ServerError, "facade: no identity resolver configured")
	}

	return f.Identity.Resolve(ctx, token)
}
