// Package ledger implements the General-Ledger Core: chart of accounts,
// balanced journal entries, the posting state machine, and balance
// aggregation for financial reports, built entirely on the
// transactional/repository/eventbus primitives beneath it.
package ledger

import (
	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/internal/transactional"
	"github.com/corebooks/erp-core/pkg/mlog"
	"github.com/corebooks/erp-core/pkg/mmetrics"
)

const (
	permCreateGLAccount   = "Finance.CreateGLAccount"
	permViewGLAccounts    = "Finance.ViewGLAccounts"
	permUpdateGLAccount   = "Finance.UpdateGLAccount"
	permDeleteGLAccount   = "Finance.DeleteGLAccount"
	permCreateJournalEntry = "Finance.CreateJournalEntry"
	permViewJournalEntries = "Finance.ViewJournalEntries"
	permPostJournalEntry   = "Finance.PostJournalEntry"
	permDeleteJournalEntry = "Finance.DeleteJournalEntry"
)

// Service is the worked composite built on the Transactional Service
// Base and the generic repository, grounded on
// original_source/Modules/Finance/Service/GeneralLedgerService.{h,cpp}.
type Service struct {
	tc *transactional.Context

	accounts *repository.Repository[*domain.GLAccount]
	balances *repository.Repository[*domain.GLAccountBalance]
	entries  *repository.Repository[*domain.JournalEntry]
	details  *repository.Repository[*domain.JournalEntryDetail]

	metrics *mmetrics.Registry
}

// New constructs a Service with repositories bound to pool.
func New(tc *transactional.Context, pool *mdb.ConnectionPool, log mlog.Logger, metrics *mmetrics.Registry) *Service {
	return &Service{
		tc:       tc,
		accounts: repository.New[*domain.GLAccount](pool, "gl_accounts", func() *domain.GLAccount { return &domain.GLAccount{} }, log),
		balances: repository.New[*domain.GLAccountBalance](pool, "gl_account_balances", func() *domain.GLAccountBalance { return &domain.GLAccountBalance{} }, log),
		entries:  repository.New[*domain.JournalEntry](pool, "journal_entries", func() *domain.JournalEntry { return &domain.JournalEntry{} }, log),
		details:  repository.New[*domain.JournalEntryDetail](pool, "journal_entry_details", func() *domain.JournalEntryDetail { return &domain.JournalEntryDetail{} }, log),
		metrics:  metrics,
	}
}
