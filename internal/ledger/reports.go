package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/mvalue"
)

// accountBalance is one line of a computed report: the account plus its
// net balance, already adjusted for the account's normal-balance
// direction so a positive value always means "more of what this
// account customarily holds".
type accountBalance struct {
	Account *domain.GLAccount
	Net     decimal.Decimal
}

// netBalancesAsOf enumerates posted entries whose posting_date falls on
// or before asOf, sums debit-minus-credit per account across their
// detail lines, then adjusts the sign for each account's normal
// balance direction.
func (s *Service) netBalancesAsOf(ctx context.Context, asOf time.Time) ([]accountBalance, error) {
	return s.netBalancesInWindow(ctx, time.Time{}, asOf)
}

// netBalancesInWindow is the same primitive restricted to entries
// posted within [start, end].
func (s *Service) netBalancesInWindow(ctx context.Context, start, end time.Time) ([]accountBalance, error) {
	entries, err := s.entries.Get(ctx, map[string]mvalue.Value{"is_posted": mvalue.Bool(true)})
	if err != nil {
		return nil, err
	}

	raw := make(map[string]decimal.Decimal)
	var order []string

	for _, entry := range entries {
		if entry.PostingDate == nil {
			continue
		}

		postingDate, err := entry.PostingDate.AsTimestamp()
		if err != nil {
			continue
		}

		if postingDate.Before(start) || postingDate.After(end) {
			continue
		}

		details, err := s.details.Get(ctx, map[string]mvalue.Value{"journal_entry_id": mvalue.String(entry.ID)})
		if err != nil {
			return nil, err
		}

		for _, d := range details {
			if _, seen := raw[d.GLAccountID]; !seen {
				order = append(order, d.GLAccountID)
			}
			raw[d.GLAccountID] = raw[d.GLAccountID].Add(d.DebitAmount).Sub(d.CreditAmount)
		}
	}

	out := make([]accountBalance, 0, len(raw))

	for _, accountID := range order {
		net := raw[accountID]
		acct, found, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}

		if !found {
			continue
		}

		adjusted := net
		if acct.NormalBalance == domain.NormalCredit {
			adjusted = net.Neg()
		}

		out = append(out, accountBalance{Account: acct, Net: adjusted})
	}

	return out, nil
}

// GenerateTrialBalance returns the net, direction-adjusted balance per
// account number for entries posted within [start, end].
func (s *Service) GenerateTrialBalance(ctx context.Context, userID string, roleIDs []string, start, end time.Time) (map[string]decimal.Decimal, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewGLAccounts, "You do not have permission to view financial reports."); !ok {
		return nil, err
	}

	balances, err := s.netBalancesInWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		out[b.Account.AccountNumber] = b.Net
	}

	return out, nil
}

// BalanceSheet is a shaped aggregation of position balances as of one
// date.
type BalanceSheet struct {
	AsOf         time.Time
	Assets       map[string]decimal.Decimal
	Liabilities  map[string]decimal.Decimal
	Equity       map[string]decimal.Decimal
	TotalAssets  decimal.Decimal
	TotalLiabEq  decimal.Decimal
}

// GenerateBalanceSheet buckets position balances as of asOf by
// AccountType.
func (s *Service) GenerateBalanceSheet(ctx context.Context, userID string, roleIDs []string, asOf time.Time) (*BalanceSheet, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewGLAccounts, "You do not have permission to view financial reports."); !ok {
		return nil, err
	}

	balances, err := s.netBalancesAsOf(ctx, asOf)
	if err != nil {
		return nil, err
	}

	sheet := &BalanceSheet{
		AsOf:        asOf,
		Assets:      map[string]decimal.Decimal{},
		Liabilities: map[string]decimal.Decimal{},
		Equity:      map[string]decimal.Decimal{},
	}

	for _, b := range balances {
		switch b.Account.AccountType {
		case domain.AccountAsset:
			sheet.Assets[b.Account.AccountNumber] = b.Net
			sheet.TotalAssets = sheet.TotalAssets.Add(b.Net)
		case domain.AccountLiability:
			sheet.Liabilities[b.Account.AccountNumber] = b.Net
			sheet.TotalLiabEq = sheet.TotalLiabEq.Add(b.Net)
		case domain.AccountEquity:
			sheet.Equity[b.Account.AccountNumber] = b.Net
			sheet.TotalLiabEq = sheet.TotalLiabEq.Add(b.Net)
		}
	}

	return sheet, nil
}

// IncomeStatement is a shaped aggregation of period balances for
// Revenue and Expense accounts.
type IncomeStatement struct {
	Start, End time.Time
	Revenue    map[string]decimal.Decimal
	Expenses   map[string]decimal.Decimal
	NetIncome  decimal.Decimal
}

// GenerateIncomeStatement sums Revenue and Expense account balances
// over [start, end] and nets them.
func (s *Service) GenerateIncomeStatement(ctx context.Context, userID string, roleIDs []string, start, end time.Time) (*IncomeStatement, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewGLAccounts, "You do not have permission to view financial reports."); !ok {
		return nil, err
	}

	balances, err := s.netBalancesInWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	statement := &IncomeStatement{
		Start:    start,
		End:      end,
		Revenue:  map[string]decimal.Decimal{},
		Expenses: map[string]decimal.Decimal{},
	}

	for _, b := range balances {
		switch b.Account.AccountType {
		case domain.AccountRevenue:
			statement.Revenue[b.Account.AccountNumber] = b.Net
			statement.NetIncome = statement.NetIncome.Add(b.Net)
		case domain.AccountExpense:
			statement.Expenses[b.Account.AccountNumber] = b.Net
			statement.NetIncome = statement.NetIncome.Sub(b.Net)
		}
	}

	return statement, nil
}

// CashFlowStatement buckets period balances by ActivityClass, resolving
// the classification the spec left as an open question.
type CashFlowStatement struct {
	Start, End time.Time
	Operating  map[string]decimal.Decimal
	Investing  map[string]decimal.Decimal
	Financing  map[string]decimal.Decimal
}

// GenerateCashFlowStatement classifies each account's period balance
// into Operating/Investing/Financing via classifyActivity.
func (s *Service) GenerateCashFlowStatement(ctx context.Context, userID string, roleIDs []string, start, end time.Time) (*CashFlowStatement, error) {
	if ok, err := s.tc.CheckPermission(ctx, userID, roleIDs, permViewGLAccounts, "You do not have permission to view financial reports."); !ok {
		return nil, err
	}

	balances, err := s.netBalancesInWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	statement := &CashFlowStatement{
		Start:     start,
		End:       end,
		Operating: map[string]decimal.Decimal{},
		Investing: map[string]decimal.Decimal{},
		Financing: map[string]decimal.Decimal{},
	}

	for _, b := range balances {
		switch classifyActivity(b.Account) {
		case domain.ActivityInvesting:
			statement.Investing[b.Account.AccountNumber] = b.Net
		case domain.ActivityFinancing:
			statement.Financing[b.Account.AccountNumber] = b.Net
		default:
			statement.Operating[b.Account.AccountNumber] = b.Net
		}
	}

	return statement, nil
}

// classifyActivity resolves Open Question 3: an explicit per-account
// override wins when present; otherwise every account defaults to
// Operating.
func classifyActivity(acct *domain.GLAccount) domain.ActivityClass {
	if acct.ActivityClass != nil {
		return *acct.ActivityClass
	}

	return domain.ActivityOperating
}
