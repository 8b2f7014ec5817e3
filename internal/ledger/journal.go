package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebooks/erp-core/internal/audit"
	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/mvalue"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/pkg/merrors"
)

// balanceTolerance is the maximum allowed |sum(debit) - sum(credit)|
// before an entry is considered unbalanced.
var balanceTolerance = decimal.NewFromFloat(0.001)

// CreateJournalEntry validates, in order: journal_number non-empty and
// unique, description non-empty with at least one detail, each detail's
// gl_account_id resolving and its debit/credit shape, then the overall
// balance invariant. Every failure surfaces before any write.
func (s *Service) CreateJournalEntry(ctx context.Context, userID string, roleIDs []string, header *domain.JournalEntry, details []*domain.JournalEntryDetail) (*domain.JournalEntry, []*domain.JournalEntryDetail, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permCreateJournalEntry, "You do not have permission to create journal entries."); !ok {
		return nil, nil, err
	}

	if header.JournalNumber == "" {
		return nil, nil, merrors.New(merrors.InvalidInput, "ledger: journal number is required").WithUser("Journal number cannot be empty.")
	}

	existing, err := s.entries.Count(ctx, map[string]mvalue.Value{"journal_number": mvalue.String(header.JournalNumber)})
	if err != nil {
		return nil, nil, err
	}

	if existing > 0 {
		return nil, nil, merrors.New(merrors.InvalidInput, "ledger: journal number already exists").WithUser("That journal number is already in use.")
	}

	if header.Description == "" || len(details) == 0 {
		return nil, nil, merrors.New(merrors.InvalidInput, "ledger: description and at least one detail are required").WithUser("A journal entry needs a description and at least one line.")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for _, d := range details {
		if _, found, err := s.accounts.GetByID(ctx, d.GLAccountID); err != nil {
			return nil, nil, err
		} else if !found {
			return nil, nil, merrors.New(merrors.NotFound, "ledger: GL account not found for journal entry detail").WithUser("One of the journal entry lines references an account that does not exist.")
		}

		if d.DebitAmount.IsNegative() || d.CreditAmount.IsNegative() {
			return nil, nil, merrors.New(merrors.InvalidInput, "ledger: debit and credit amounts must be non-negative").WithUser("Debit and credit amounts cannot be negative.")
		}

		if !d.DebitAmount.IsZero() && !d.CreditAmount.IsZero() {
			return nil, nil, merrors.New(merrors.InvalidInput, "ledger: a detail line cannot carry both a debit and a credit").WithUser("Each journal entry line must be either a debit or a credit, not both.")
		}

		totalDebit = totalDebit.Add(d.DebitAmount)
		totalCredit = totalCredit.Add(d.CreditAmount)
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(balanceTolerance) {
		return nil, nil, merrors.New(merrors.InvalidInput, "ledger: total debits must equal total credits").WithUser("The journal entry is not balanced: total debits must equal total credits.")
	}

	now := time.Now().UTC()

	createdHeader := &domain.JournalEntry{
		Base: domain.Base{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Status:    domain.StatusActive,
			CreatedAt: now,
			CreatedBy: userID,
		},
		JournalNumber: header.JournalNumber,
		Description:   header.Description,
		EntryDate:     header.EntryDate,
		Reference:     header.Reference,
		TotalDebit:    totalDebit,
		TotalCredit:   totalCredit,
		IsPosted:      false,
	}

	createdDetails := make([]*domain.JournalEntryDetail, 0, len(details))

	for _, d := range details {
		createdDetails = append(createdDetails, &domain.JournalEntryDetail{
			Base: domain.Base{
				ID:        uuid.Must(uuid.NewV7()).String(),
				Status:    domain.StatusActive,
				CreatedAt: now,
				CreatedBy: userID,
			},
			JournalEntryID: createdHeader.ID,
			GLAccountID:    d.GLAccountID,
			DebitAmount:    d.DebitAmount,
			CreditAmount:   d.CreditAmount,
			Notes:          d.Notes,
		})
	}

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		if err := s.entries.WithConnection(conn).Create(ctx, createdHeader); err != nil {
			return false, nil, err
		}

		boundDetails := s.details.WithConnection(conn)
		for _, d := range createdDetails {
			if err := boundDetails.Create(ctx, d); err != nil {
				return false, nil, err
			}
		}

		return true, []eventbus.Event{{Type: "journal_entry.created", Payload: map[string]any{"journal_entry_id": createdHeader.ID}}}, nil
	}, "ledger", "createJournalEntry")
	if err != nil {
		return nil, nil, err
	}

	if !ok {
		return nil, nil, merrors.New(merrors.OperationFailed, "ledger: create journal entry failed")
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionCreate,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "JournalEntry",
		EntityID:   &createdHeader.ID,
		EntityType: strPtr("JournalEntry"),
		EntityName: &createdHeader.JournalNumber,
		AfterData:  valueMapToAny(createdHeader.ToMap()),
	})

	return createdHeader, createdDetails, nil
}

// PostJournalEntry re-reads the entry and its details, re-checks the
// balance invariant, then updates each referenced account's running
// balance before stamping the entry posted. An already-posted entry is
// treated as an idempotent success, mirroring the source behaviour.
func (s *Service) PostJournalEntry(ctx context.Context, userID string, roleIDs []string, journalEntryID string) error {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permPostJournalEntry, "You do not have permission to post journal entries."); !ok {
		return err
	}

	old, found, err := s.entries.GetByID(ctx, journalEntryID)
	if err != nil {
		return err
	}

	if !found {
		return merrors.New(merrors.NotFound, "ledger: journal entry not found").WithUser("The journal entry to post could not be found.")
	}

	if old.IsPosted {
		return nil
	}

	details, err := s.details.Get(ctx, map[string]mvalue.Value{"journal_entry_id": mvalue.String(journalEntryID)})
	if err != nil {
		return err
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for _, d := range details {
		totalDebit = totalDebit.Add(d.DebitAmount)
		totalCredit = totalCredit.Add(d.CreditAmount)
	}

	if totalDebit.Sub(totalCredit).Abs().GreaterThan(balanceTolerance) {
		return merrors.New(merrors.OperationFailed, "ledger: unbalanced journal entry cannot be posted").WithUser("This journal entry is unbalanced and cannot be posted.")
	}

	now := time.Now().UTC()

	posted := *old
	posted.IsPosted = true
	postingDate := mvalue.Timestamp(now)
	posted.PostingDate = &postingDate
	posted.PostedByUserID = &userID
	posted.Touch(now, userID)

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		boundBalances := s.balances.WithConnection(conn)

		for _, d := range details {
			if err := s.postBalance(ctx, boundBalances, d.GLAccountID, d.DebitAmount, d.CreditAmount, now); err != nil {
				return false, nil, err
			}
		}

		if err := s.entries.WithConnection(conn).Update(ctx, &posted); err != nil {
			return false, nil, err
		}

		return true, []eventbus.Event{{Type: "journal_entry.posted", Payload: map[string]any{"journal_entry_id": posted.ID}}}, nil
	}, "ledger", "postJournalEntry")
	if err != nil {
		return err
	}

	if !ok {
		return merrors.New(merrors.OperationFailed, "ledger: post journal entry failed")
	}

	if s.metrics != nil {
		s.metrics.JournalPosted.Inc()
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionPost,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "JournalEntryPosting",
		EntityID:   &posted.ID,
		EntityType: strPtr("JournalEntry"),
		EntityName: &posted.JournalNumber,
		BeforeData: valueMapToAny(old.ToMap()),
		AfterData:  valueMapToAny(posted.ToMap()),
	})

	return nil
}

// postBalance lazily creates a GLAccountBalance on first touch, else
// adds debitAmount/creditAmount to the running totals and stamps
// last_posted_date.
func (s *Service) postBalance(ctx context.Context, balances *repository.Repository[*domain.GLAccountBalance], glAccountID string, debitAmount, creditAmount decimal.Decimal, at time.Time) error {
	rows, err := balances.Get(ctx, map[string]mvalue.Value{"gl_account_id": mvalue.String(glAccountID)})
	if err != nil {
		return err
	}

	lastPosted := mvalue.Timestamp(at)

	if len(rows) == 0 {
		balance := &domain.GLAccountBalance{
			Base: domain.Base{
				ID:        uuid.Must(uuid.NewV7()).String(),
				Status:    domain.StatusActive,
				CreatedAt: at,
				CreatedBy: "system",
			},
			GLAccountID:          glAccountID,
			CurrentDebitBalance:  debitAmount,
			CurrentCreditBalance: creditAmount,
			Currency:             "USD",
			LastPostedDate:       &lastPosted,
		}

		return balances.Create(ctx, balance)
	}

	balance := rows[0]
	balance.CurrentDebitBalance = balance.CurrentDebitBalance.Add(debitAmount)
	balance.CurrentCreditBalance = balance.CurrentCreditBalance.Add(creditAmount)
	balance.LastPostedDate = &lastPosted
	balance.Touch(at, "system")

	return balances.Update(ctx, balance)
}

// DeleteJournalEntry hard-deletes an unposted entry and its details in
// one transaction; a posted entry is a ledger fact and can never be
// deleted.
func (s *Service) DeleteJournalEntry(ctx context.Context, userID string, roleIDs []string, journalEntryID string) error {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permDeleteJournalEntry, "You do not have permission to delete journal entries."); !ok {
		return err
	}

	old, found, err := s.entries.GetByID(ctx, journalEntryID)
	if err != nil {
		return err
	}

	if !found {
		return merrors.New(merrors.NotFound, "ledger: journal entry not found").WithUser("The journal entry to delete could not be found.")
	}

	if old.IsPosted {
		return merrors.New(merrors.Forbidden, "ledger: cannot delete a posted journal entry").WithUser("Posted journal entries cannot be deleted.")
	}

	details, err := s.details.Get(ctx, map[string]mvalue.Value{"journal_entry_id": mvalue.String(journalEntryID)})
	if err != nil {
		return err
	}

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		boundDetails := s.details.WithConnection(conn)
		for _, d := range details {
			if err := boundDetails.Remove(ctx, d.ID); err != nil {
				return false, nil, err
			}
		}

		if err := s.entries.WithConnection(conn).Remove(ctx, journalEntryID); err != nil {
			return false, nil, err
		}

		return true, []eventbus.Event{{Type: "journal_entry.deleted", Payload: map[string]any{"journal_entry_id": journalEntryID}}}, nil
	}, "ledger", "deleteJournalEntry")
	if err != nil {
		return err
	}

	if !ok {
		return merrors.New(merrors.OperationFailed, "ledger: delete journal entry failed")
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionDelete,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "JournalEntry",
		EntityID:   &old.ID,
		EntityType: strPtr("JournalEntry"),
		EntityName: &old.JournalNumber,
		BeforeData: valueMapToAny(old.ToMap()),
	})

	return nil
}

// ListJournalEntries applies filter as an equality AND and requires
// view permission.
func (s *Service) ListJournalEntries(ctx context.Context, userID string, roleIDs []string, filter map[string]mvalue.Value) ([]*domain.JournalEntry, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewJournalEntries, "You do not have permission to view journal entries."); !ok {
		return nil, err
	}

	return s.entries.Get(ctx, filter)
}

// GetJournalEntryDetails requires view permission before listing the
// detail lines for one entry.
func (s *Service) GetJournalEntryDetails(ctx context.Context, userID string, roleIDs []string, journalEntryID string) ([]*domain.JournalEntryDetail, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewJournalEntries, "You do not have permission to view journal entries."); !ok {
		return nil, err
	}

	return s.details.Get(ctx, map[string]mvalue.Value{"journal_entry_id": mvalue.String(journalEntryID)})
}
