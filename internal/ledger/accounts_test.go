package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/pkg/merrors"
)

func TestCreateGLAccount_RejectsDuplicateAccountNumber(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS n FROM gl_accounts WHERE account_number = \$1`).
		WithArgs("1000").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	_, err := svc.CreateGLAccount(context.Background(), "u1", []string{grantedRole}, &domain.GLAccount{
		AccountNumber: "1000",
		AccountName:   "Cash",
		AccountType:   domain.AccountAsset,
		NormalBalance: domain.NormalDebit,
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestCreateGLAccount_SucceedsAndAudits(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS n FROM gl_accounts WHERE account_number = \$1`).
		WithArgs("1000").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO gl_accounts`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	expectAuditWrite(mock)

	created, err := svc.CreateGLAccount(context.Background(), "u1", []string{grantedRole}, &domain.GLAccount{
		AccountNumber: "1000",
		AccountName:   "Cash",
		AccountType:   domain.AccountAsset,
		NormalBalance: domain.NormalDebit,
	})

	require.NoError(t, err)
	assert.Equal(t, "1000", created.AccountNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestUpdateGLAccount_RejectsCycle(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()
	accountCols := []string{"id", "status", "created_at", "created_by", "account_number", "account_name", "account_type", "normal_balance", "parent_account_id", "description", "activity_class"}

	// Updating "child" to have "grandchild" as its new parent, where
	// grandchild's own parent is already "child" — reassigning would
	// make child an ancestor of its own ancestor.
	mock.ExpectQuery(`SELECT \* FROM gl_accounts WHERE id = \$1`).WithArgs("child").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("child", "Active", now, "u1", "2000", "Child", "Asset", "Debit", nil, nil, nil))

	mock.ExpectQuery(`SELECT \* FROM gl_accounts WHERE id = \$1`).WithArgs("grandchild").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("grandchild", "Active", now, "u1", "3000", "Grandchild", "Asset", "Debit", "child", nil, nil))

	_, err := svc.UpdateGLAccount(context.Background(), "u1", []string{grantedRole}, &domain.GLAccount{
		Base:            domain.Base{ID: "child"},
		AccountNumber:   "2000",
		AccountName:     "Child",
		AccountType:     domain.AccountAsset,
		NormalBalance:   domain.NormalDebit,
		ParentAccountID: strPtr("grandchild"),
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestDeleteGLAccount_RejectedWhenBalanceExists(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()
	accountCols := []string{"id", "status", "created_at", "created_by", "account_number", "account_name", "account_type", "normal_balance", "parent_account_id", "description", "activity_class"}

	mock.ExpectQuery(`SELECT \* FROM gl_accounts WHERE id = \$1`).WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("acct-1", "Active", now, "u1", "1000", "Cash", "Asset", "Debit", nil, nil, nil))

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS n FROM gl_account_balances WHERE gl_account_id = \$1`).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	err := svc.DeleteGLAccount(context.Background(), "u1", []string{grantedRole}, "acct-1")

	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.OperationFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}
