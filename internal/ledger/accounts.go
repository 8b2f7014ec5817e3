package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/corebooks/erp-core/internal/audit"
	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/mvalue"
	"github.com/corebooks/erp-core/pkg/merrors"
)

// CreateGLAccount validates account_number uniqueness and, if present,
// that parent_account_id resolves to an existing account; a brand new
// account can never form a cycle, since nothing yet points to it.
func (s *Service) CreateGLAccount(ctx context.Context, userID string, roleIDs []string, in *domain.GLAccount) (*domain.GLAccount, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permCreateGLAccount, "You do not have permission to create general ledger accounts."); !ok {
		return nil, err
	}

	if in.AccountNumber == "" || in.AccountName == "" {
		return nil, merrors.New(merrors.InvalidInput, "ledger: account number and name are required").WithUser("Account number and name cannot be empty.")
	}

	existing, err := s.accounts.Count(ctx, map[string]mvalue.Value{"account_number": mvalue.String(in.AccountNumber)})
	if err != nil {
		return nil, err
	}

	if existing > 0 {
		return nil, merrors.New(merrors.InvalidInput, "ledger: account number already exists").WithUser("That account number is already in use.")
	}

	if in.ParentAccountID != nil {
		if _, found, err := s.accounts.GetByID(ctx, *in.ParentAccountID); err != nil {
			return nil, err
		} else if !found {
			return nil, merrors.New(merrors.NotFound, "ledger: parent account not found").WithUser("The parent account does not exist.")
		}
	}

	now := time.Now().UTC()

	created := &domain.GLAccount{
		Base: domain.Base{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Status:    domain.StatusActive,
			CreatedAt: now,
			CreatedBy: userID,
		},
		AccountNumber:   in.AccountNumber,
		AccountName:     in.AccountName,
		AccountType:     in.AccountType,
		NormalBalance:   in.NormalBalance,
		ParentAccountID: in.ParentAccountID,
		Description:     in.Description,
		ActivityClass:   in.ActivityClass,
	}

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		if err := s.accounts.WithConnection(conn).Create(ctx, created); err != nil {
			return false, nil, err
		}

		return true, []eventbus.Event{{Type: "gl_account.created", Payload: map[string]any{"gl_account_id": created.ID}}}, nil
	}, "ledger", "createGLAccount")
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, merrors.New(merrors.OperationFailed, "ledger: create GL account failed")
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionCreate,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "GLAccount",
		EntityID:   &created.ID,
		EntityType: strPtr("GLAccount"),
		EntityName: &created.AccountNumber,
		AfterData:  valueMapToAny(created.ToMap()),
	})

	return created, nil
}

// GetGLAccountByID requires view permission before delegating to the
// repository.
func (s *Service) GetGLAccountByID(ctx context.Context, userID string, roleIDs []string, id string) (*domain.GLAccount, bool, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewGLAccounts, "You do not have permission to view general ledger accounts."); !ok {
		return nil, false, err
	}

	return s.accounts.GetByID(ctx, id)
}

// ListGLAccounts applies filter as an equality AND and requires view
// permission.
func (s *Service) ListGLAccounts(ctx context.Context, userID string, roleIDs []string, filter map[string]mvalue.Value) ([]*domain.GLAccount, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewGLAccounts, "You do not have permission to view general ledger accounts."); !ok {
		return nil, err
	}

	return s.accounts.Get(ctx, filter)
}

// UpdateGLAccount rejects reassigning account_number to one already
// taken by a different account, and rejects setting parent_account_id
// to the account itself or to any of its descendants.
func (s *Service) UpdateGLAccount(ctx context.Context, userID string, roleIDs []string, in *domain.GLAccount) (*domain.GLAccount, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permUpdateGLAccount, "You do not have permission to update general ledger accounts."); !ok {
		return nil, err
	}

	old, found, err := s.accounts.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, merrors.New(merrors.NotFound, "ledger: GL account not found").WithUser("The account to update could not be found.")
	}

	if in.AccountNumber != old.AccountNumber {
		rows, err := s.accounts.Get(ctx, map[string]mvalue.Value{"account_number": mvalue.String(in.AccountNumber)})
		if err != nil {
			return nil, err
		}

		if len(rows) > 0 && rows[0].ID != in.ID {
			return nil, merrors.New(merrors.InvalidInput, "ledger: account number already exists").WithUser("That account number is already in use.")
		}
	}

	if in.ParentAccountID != nil {
		if *in.ParentAccountID == in.ID {
			return nil, merrors.New(merrors.InvalidInput, "ledger: an account cannot be its own parent").WithUser("An account cannot be its own parent.")
		}

		isCycle, err := s.wouldCycle(ctx, in.ID, *in.ParentAccountID)
		if err != nil {
			return nil, err
		}

		if isCycle {
			return nil, merrors.New(merrors.InvalidInput, "ledger: parent account would form a cycle").WithUser("That parent account is a descendant of this account.")
		}
	}

	now := time.Now().UTC()

	updated := *old
	updated.AccountNumber = in.AccountNumber
	updated.AccountName = in.AccountName
	updated.AccountType = in.AccountType
	updated.NormalBalance = in.NormalBalance
	updated.ParentAccountID = in.ParentAccountID
	updated.Description = in.Description
	updated.ActivityClass = in.ActivityClass
	updated.Touch(now, userID)

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		if err := s.accounts.WithConnection(conn).Update(ctx, &updated); err != nil {
			return false, nil, err
		}

		return true, []eventbus.Event{{Type: "gl_account.updated", Payload: map[string]any{"gl_account_id": updated.ID}}}, nil
	}, "ledger", "updateGLAccount")
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, merrors.New(merrors.OperationFailed, "ledger: update GL account failed")
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionUpdate,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "GLAccount",
		EntityID:   &updated.ID,
		EntityType: strPtr("GLAccount"),
		EntityName: &updated.AccountNumber,
		BeforeData: valueMapToAny(old.ToMap()),
		AfterData:  valueMapToAny(updated.ToMap()),
	})

	return &updated, nil
}

// UpdateGLAccountStatus toggles between Active and Inactive only;
// transitions to Deleted happen only through DeleteGLAccount.
func (s *Service) UpdateGLAccountStatus(ctx context.Context, userID string, roleIDs []string, id string, newStatus domain.Status) error {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permUpdateGLAccount, "You do not have permission to update general ledger accounts."); !ok {
		return err
	}

	if newStatus != domain.StatusActive && newStatus != domain.StatusInactive {
		return merrors.New(merrors.InvalidInput, "ledger: status must be Active or Inactive").WithUser("Status can only be set to Active or Inactive here.")
	}

	old, found, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !found {
		return merrors.New(merrors.NotFound, "ledger: GL account not found").WithUser("The account could not be found.")
	}

	now := time.Now().UTC()

	updated := *old
	updated.Status = newStatus
	updated.Touch(now, userID)

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		if err := s.accounts.WithConnection(conn).Update(ctx, &updated); err != nil {
			return false, nil, err
		}

		return true, []eventbus.Event{{Type: "gl_account.status_changed", Payload: map[string]any{"gl_account_id": updated.ID}}}, nil
	}, "ledger", "updateGLAccountStatus")
	if err != nil {
		return err
	}

	if !ok {
		return merrors.New(merrors.OperationFailed, "ledger: update GL account status failed")
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionStatusChange,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "GLAccount",
		EntityID:   &updated.ID,
		EntityType: strPtr("GLAccount"),
		EntityName: &updated.AccountNumber,
		BeforeData: valueMapToAny(old.ToMap()),
		AfterData:  valueMapToAny(updated.ToMap()),
	})

	return nil
}

// DeleteGLAccount rejects deletion while a Balance row exists for the
// account, since that indicates the account has been used.
func (s *Service) DeleteGLAccount(ctx context.Context, userID string, roleIDs []string, id string) error {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permDeleteGLAccount, "You do not have permission to delete general ledger accounts."); !ok {
		return err
	}

	old, found, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !found {
		return merrors.New(merrors.NotFound, "ledger: GL account not found").WithUser("The account to delete could not be found.")
	}

	balanceCount, err := s.balances.Count(ctx, map[string]mvalue.Value{"gl_account_id": mvalue.String(id)})
	if err != nil {
		return err
	}

	if balanceCount > 0 {
		return merrors.New(merrors.OperationFailed, "ledger: cannot delete an account with an existing balance").WithUser("This account cannot be deleted because it has an associated balance.")
	}

	ok, err := s.tc.ExecuteTransaction(ctx, func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		if err := s.accounts.WithConnection(conn).Remove(ctx, id); err != nil {
			return false, nil, err
		}

		return true, []eventbus.Event{{Type: "gl_account.deleted", Payload: map[string]any{"gl_account_id": id}}}, nil
	}, "ledger", "deleteGLAccount")
	if err != nil {
		return err
	}

	if !ok {
		return merrors.New(merrors.OperationFailed, "ledger: delete GL account failed")
	}

	s.tc.RecordAuditLog(ctx, audit.Fields{
		UserID:     userID,
		ActionType: domain.ActionDelete,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "GLAccount",
		EntityID:   &old.ID,
		EntityType: strPtr("GLAccount"),
		EntityName: &old.AccountNumber,
		BeforeData: valueMapToAny(old.ToMap()),
	})

	return nil
}

// wouldCycle reports whether setting accountID's parent to candidateParentID
// would create a cycle: it walks candidateParentID's own ancestor chain, and
// if accountID is ever encountered, candidateParentID is a descendant of
// accountID and the assignment is rejected.
func (s *Service) wouldCycle(ctx context.Context, accountID, candidateParentID string) (bool, error) {
	current := candidateParentID

	for i := 0; i < 1000; i++ {
		if current == accountID {
			return true, nil
		}

		acct, found, err := s.accounts.GetByID(ctx, current)
		if err != nil {
			return false, err
		}

		if !found || acct.ParentAccountID == nil {
			return false, nil
		}

		current = *acct.ParentAccountID
	}

	return false, merrors.New(merrors.ServerError, "ledger: chart of accounts parent chain exceeds depth limit")
}

func strPtr(s string) *string { return &s }

func valueMapToAny(m map[string]mvalue.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}

	return out
}
