// Package audit implements the Audit Recorder: a single operation that
// writes one immutable AuditRecord and never signals failure upstream.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/pkg/mlog"
)

// Recorder writes AuditRecords through the generic repository inside
// its own transaction. Callers invoke Record after their primary work
// has already committed; a logging failure here is logged and
// swallowed, never propagated.
type Recorder struct {
	pool    *mdb.ConnectionPool
	records *repository.Repository[*domain.AuditRecord]
	log     mlog.Logger
}

// New constructs a Recorder bound to pool for its own transactions.
func New(pool *mdb.ConnectionPool, log mlog.Logger) *Recorder {
	if log == nil {
		log = mlog.Nop{}
	}

	records := repository.New[*domain.AuditRecord](pool, "audit_logs", func() *domain.AuditRecord { return &domain.AuditRecord{} }, log)

	return &Recorder{pool: pool, records: records, log: log}
}

// Fields is the set of values describing one audit entry, mirroring the
// parameters 4.E's record(...) accepts.
type Fields struct {
	UserID         string
	UserName       string
	SessionID      *string
	ActionType     domain.ActionType
	Severity       domain.Severity
	Module         string
	SubModule      string
	EntityID       *string
	EntityType     *string
	EntityName     *string
	IPAddress      *string
	UserAgent      *string
	BeforeData     map[string]any
	AfterData      map[string]any
	ChangeReason   *string
	Metadata       map[string]any
	IsCompliant    bool
	ComplianceNote *string
}

// Record writes one AuditRecord in its own transaction. It never
// returns an error to the caller: failures are logged at Error level
// and swallowed, since audit writes happen after the primary operation
// has already committed and must not retroactively fail it.
func (r *Recorder) Record(ctx context.Context, f Fields) {
	now := time.Now().UTC()

	rec := &domain.AuditRecord{
		Base: domain.Base{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Status:    domain.StatusActive,
			CreatedAt: now,
			CreatedBy: f.UserID,
		},
		UserID:         f.UserID,
		UserName:       f.UserName,
		SessionID:      f.SessionID,
		ActionType:     f.ActionType,
		Severity:       f.Severity,
		Module:         f.Module,
		SubModule:      f.SubModule,
		EntityID:       f.EntityID,
		EntityType:     f.EntityType,
		EntityName:     f.EntityName,
		IPAddress:      f.IPAddress,
		UserAgent:      f.UserAgent,
		BeforeData:     f.BeforeData,
		AfterData:      f.AfterData,
		ChangeReason:   f.ChangeReason,
		Metadata:       f.Metadata,
		IsCompliant:    f.IsCompliant,
		ComplianceNote: f.ComplianceNote,
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		r.log.Errorf("audit: failed to acquire connection: %v", err)
		return
	}
	defer r.pool.Release(conn)

	if err := conn.BeginTransaction(ctx); err != nil {
		r.log.Errorf("audit: failed to begin transaction: %v", err)
		return
	}

	if err := r.records.WithConnection(conn).Create(ctx, rec); err != nil {
		r.log.Errorf("audit: failed to write record: %v", err)

		if rbErr := conn.RollbackTransaction(); rbErr != nil {
			r.log.Errorf("audit: rollback also failed: %v", rbErr)
		}

		return
	}

	if err := conn.CommitTransaction(); err != nil {
		r.log.Errorf("audit: failed to commit record: %v", err)
	}
}
