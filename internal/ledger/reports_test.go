package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/domain"
)

var (
	journalReportCols = []string{"id", "status", "created_at", "created_by", "journal_number", "description", "entry_date", "total_debit", "total_credit", "is_posted", "posting_date", "reference", "posted_by_user_id"}
	detailReportCols  = []string{"id", "status", "created_at", "created_by", "journal_entry_id", "gl_account_id", "debit_amount", "credit_amount", "notes"}
	accountReportCols = []string{"id", "status", "created_at", "created_by", "account_number", "account_name", "account_type", "normal_balance", "parent_account_id", "description", "activity_class"}
)

// expectPostedLedgerSweep arranges the query sequence netBalancesInWindow
// issues for a single posted journal entry: the entries scan, the one
// matching entry's detail lines, then a GetByID lookup per distinct
// account referenced by those details.
func expectPostedLedgerSweep(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectQuery(`SELECT \* FROM journal_entries WHERE is_posted = \$1`).WithArgs(true).
		WillReturnRows(sqlmock.NewRows(journalReportCols).
			AddRow("je-1", "Active", now, "u1", "JE-200", "Cash sale", now, 100.0, 100.0, true, now, nil, "u1"))

	mock.ExpectQuery(`SELECT \* FROM journal_entry_details WHERE journal_entry_id = \$1`).WithArgs("je-1").
		WillReturnRows(sqlmock.NewRows(detailReportCols).
			AddRow("d-1", "Active", now, "u1", "je-1", "acct-cash", 100.0, 0.0, nil).
			AddRow("d-2", "Active", now, "u1", "je-1", "acct-rev", 0.0, 100.0, nil))

	mock.ExpectQuery(`SELECT \* FROM gl_accounts WHERE id = \$1`).WithArgs("acct-cash").
		WillReturnRows(sqlmock.NewRows(accountReportCols).
			AddRow("acct-cash", "Active", now, "u1", "1000", "Cash", "Asset", "Debit", nil, nil, nil))

	mock.ExpectQuery(`SELECT \* FROM gl_accounts WHERE id = \$1`).WithArgs("acct-rev").
		WillReturnRows(sqlmock.NewRows(accountReportCols).
			AddRow("acct-rev", "Active", now, "u1", "4000", "Sales Revenue", "Revenue", "Credit", nil, nil, nil))
}

func TestGenerateTrialBalance_SumsDirectionAdjustedBalances(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()
	expectPostedLedgerSweep(mock, now)

	balances, err := svc.GenerateTrialBalance(context.Background(), "u1", []string{grantedRole}, now.Add(-time.Hour), now.Add(time.Hour))

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(balances["1000"]))
	assert.True(t, decimal.NewFromInt(100).Equal(balances["4000"]))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestGenerateTrialBalance_RequiresPermission(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)

	now := time.Now()
	authMock.ExpectQuery(`SELECT \* FROM roles WHERE id = \$1`).WithArgs(grantedRole).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "name"}).AddRow(grantedRole, "Active", now, "system", "Clerk"))
	authMock.ExpectQuery(`SELECT \* FROM role_permissions WHERE role_id = \$1`).WithArgs(grantedRole).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "role_id", "permission_name"}))

	_, err := svc.GenerateTrialBalance(context.Background(), "u1", []string{grantedRole}, now.Add(-time.Hour), now.Add(time.Hour))

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestGenerateBalanceSheet_BucketsByAccountType(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()
	expectPostedLedgerSweep(mock, now)

	sheet, err := svc.GenerateBalanceSheet(context.Background(), "u1", []string{grantedRole}, now)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(sheet.Assets["1000"]))
	assert.Empty(t, sheet.Liabilities)
	assert.Empty(t, sheet.Equity)
	assert.True(t, decimal.NewFromInt(100).Equal(sheet.TotalAssets))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestGenerateIncomeStatement_NetsRevenueAgainstExpenses(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()
	expectPostedLedgerSweep(mock, now)

	stmt, err := svc.GenerateIncomeStatement(context.Background(), "u1", []string{grantedRole}, now.Add(-time.Hour), now.Add(time.Hour))

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(stmt.Revenue["4000"]))
	assert.True(t, decimal.NewFromInt(100).Equal(stmt.NetIncome))
	assert.Empty(t, stmt.Expenses)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestGenerateCashFlowStatement_DefaultsUnclassifiedAccountsToOperating(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()
	expectPostedLedgerSweep(mock, now)

	stmt, err := svc.GenerateCashFlowStatement(context.Background(), "u1", []string{grantedRole}, now.Add(-time.Hour), now.Add(time.Hour))

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(stmt.Operating["1000"]))
	assert.True(t, decimal.NewFromInt(100).Equal(stmt.Operating["4000"]))
	assert.Empty(t, stmt.Investing)
	assert.Empty(t, stmt.Financing)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestGenerateCashFlowStatement_HonoursExplicitActivityClassOverride(t *testing.T) {
	t.Parallel()

	svc, mock, authMock := newTestService(t)
	expectGrant(authMock)

	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM journal_entries WHERE is_posted = \$1`).WithArgs(true).
		WillReturnRows(sqlmock.NewRows(journalReportCols).
			AddRow("je-2", "Active", now, "u1", "JE-201", "Equipment purchase", now, 500.0, 500.0, true, now, nil, "u1"))

	mock.ExpectQuery(`SELECT \* FROM journal_entry_details WHERE journal_entry_id = \$1`).WithArgs("je-2").
		WillReturnRows(sqlmock.NewRows(detailReportCols).
			AddRow("d-3", "Active", now, "u1", "je-2", "acct-equip", 500.0, 0.0, nil))

	mock.ExpectQuery(`SELECT \* FROM gl_accounts WHERE id = \$1`).WithArgs("acct-equip").
		WillReturnRows(sqlmock.NewRows(accountReportCols).
			AddRow("acct-equip", "Active", now, "u1", "1500", "Equipment", "Asset", "Debit", nil, nil, "Investing"))

	stmt, err := svc.GenerateCashFlowStatement(context.Background(), "u1", []string{grantedRole}, now.Add(-time.Hour), now.Add(time.Hour))

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(stmt.Investing["1500"]))
	assert.Empty(t, stmt.Operating)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}

func TestClassifyActivity_DefaultsToOperatingWhenUnset(t *testing.T) {
	t.Parallel()

	acct := &domain.GLAccount{AccountNumber: "1000", AccountType: domain.AccountAsset}

	assert.Equal(t, domain.ActivityOperating, classifyActivity(acct))
}

func TestClassifyActivity_HonoursOverride(t *testing.T) {
	t.Parallel()

	financing := domain.ActivityFinancing
	acct := &domain.GLAccount{AccountNumber: "2200", AccountType: domain.AccountLiability, ActivityClass: &financing}

	assert.Equal(t, domain.ActivityFinancing, classifyActivity(acct))
}
