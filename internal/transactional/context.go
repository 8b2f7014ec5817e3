// Package transactional implements the TransactionalContext: the three
// primitives every feature service composes with instead of inheriting
// from a service base class.
package transactional

import (
	"context"

	"github.com/corebooks/erp-core/internal/audit"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/mauth"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/pkg/merrors"
	"github.com/corebooks/erp-core/pkg/mlog"
	"github.com/corebooks/erp-core/pkg/mmetrics"
)

// Work is the sole place per-operation SQL may be issued: the callback
// receives the Connection the enclosing transaction opened, and every
// repository call inside it must be bound to that same Connection via
// Repository.WithConnection. Returning false rolls the transaction
// back; returning an error does too, and the error is propagated to
// the caller of ExecuteTransaction after rollback. The returned events
// are not published until the transaction has actually committed, so
// a work callback can build them unconditionally without fear of
// firing on a rollback.
type Work func(conn *mdb.Connection) (ok bool, events []eventbus.Event, err error)

// Context bundles the four dependencies every feature service needs:
// the Authorization Engine, the Audit Recorder, the Connection Pool,
// and the Event Bus. Feature services hold a Context plus their own
// repositories, composing rather than extending a base class.
type Context struct {
	Auth    *mauth.Engine
	Audit   *audit.Recorder
	Pool    *mdb.ConnectionPool
	Events  *eventbus.Bus
	Log     mlog.Logger
	Metrics *mmetrics.Registry
}

// New constructs a Context. log may be nil.
func New(auth *mauth.Engine, rec *audit.Recorder, pool *mdb.ConnectionPool, events *eventbus.Bus, log mlog.Logger, metrics *mmetrics.Registry) *Context {
	if log == nil {
		log = mlog.Nop{}
	}

	return &Context{Auth: auth, Audit: rec, Pool: pool, Events: events, Log: log, Metrics: metrics}
}

// CheckPermission delegates to the Authorization Engine; on deny it
// synthesises a Forbidden error carrying userMessage and returns false.
func (c *Context) CheckPermission(ctx context.Context, userID string, roleIDs []string, permission, userMessage string) (bool, error) {
	granted, err := c.Auth.HasPermission(ctx, userID, roleIDs, permission)
	if err != nil {
		return false, merrors.Wrap(merrors.ServerError, err, "transactional: permission check failed")
	}

	if !granted {
		c.Log.Warnf("transactional: permission denied for user %s: %s", userID, permission)
		return false, merrors.New(merrors.Forbidden, permission).WithUser(userMessage)
	}

	return true, nil
}

// ExecuteTransaction acquires a Connection from the pool, opens a
// transaction, and invokes work. If work returns true, the transaction
// commits and any events work produced are published, in the same call
// frame as the commit; otherwise, or on a propagated panic, it rolls
// back and nothing is published. The Connection is always returned to
// the pool. A panic is converted into an OperationFailed error after
// rollback, never left to unwind past this call.
func (c *Context) ExecuteTransaction(ctx context.Context, work Work, serviceName, opName string) (ok bool, err error) {
	conn, err := c.Pool.Acquire(ctx)
	if err != nil {
		return false, merrors.Wrap(merrors.DatabaseError, err, "transactional: acquire connection")
	}
	defer c.Pool.Release(conn)

	if err := conn.BeginTransaction(ctx); err != nil {
		return false, merrors.Wrap(merrors.DatabaseError, err, "transactional: begin")
	}

	defer func() {
		if r := recover(); r != nil {
			_ = conn.RollbackTransaction()

			if c.Metrics != nil {
				c.Metrics.TxRollbacks.Inc()
			}

			c.Log.Errorf("transactional: %s.%s panicked: %v", serviceName, opName, r)

			ok = false
			err = merrors.New(merrors.OperationFailed, "transactional: operation panicked")
		}
	}()

	success, events, workErr := work(conn)
	if workErr != nil || !success {
		if rbErr := conn.RollbackTransaction(); rbErr != nil {
			c.Log.Errorf("transactional: %s.%s rollback failed: %v", serviceName, opName, rbErr)
		}

		if c.Metrics != nil {
			c.Metrics.TxRollbacks.Inc()
		}

		if workErr != nil {
			return false, workErr
		}

		return false, nil
	}

	if err := conn.CommitTransaction(); err != nil {
		c.Log.Errorf("transactional: %s.%s commit failed: %v", serviceName, opName, err)

		if c.Metrics != nil {
			c.Metrics.TxRollbacks.Inc()
		}

		return false, merrors.Wrap(merrors.DatabaseError, err, "transactional: commit")
	}

	if c.Metrics != nil {
		c.Metrics.TxCommits.Inc()
	}

	if c.Events != nil {
		for _, evt := range events {
			c.Events.Publish(evt)
		}
	}

	return true, nil
}

// RecordAuditLog is called after ExecuteTransaction returns true, so a
// rolled-back operation leaves no audit trace.
func (c *Context) RecordAuditLog(ctx context.Context, f audit.Fields) {
	c.Audit.Record(ctx, f)
}
