package domain

import (
	"github.com/corebooks/erp-core/internal/mvalue"
	"github.com/shopspring/decimal"
)

// AccountType classifies a GLAccount for reporting and for the normal
// balance it customarily carries.
type AccountType string

const (
	AccountAsset     AccountType = "Asset"
	AccountLiability AccountType = "Liability"
	AccountEquity    AccountType = "Equity"
	AccountRevenue   AccountType = "Revenue"
	AccountExpense   AccountType = "Expense"
	AccountOther     AccountType = "Other"
)

// NormalBalance is the side an account customarily carries a positive
// balance on.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "Debit"
	NormalCredit NormalBalance = "Credit"
)

// ActivityClass buckets a GLAccount for cash-flow reporting, resolving
// the spec's open question on classification deterministically: an
// account's explicit override when set, otherwise Operating for every
// AccountType.
type ActivityClass string

const (
	ActivityOperating ActivityClass = "Operating"
	ActivityInvesting ActivityClass = "Investing"
	ActivityFinancing ActivityClass = "Financing"
)

// GLAccount is a node in the chart of accounts forest.
type GLAccount struct {
	Base
	AccountNumber   string
	AccountName     string
	AccountType     AccountType
	NormalBalance   NormalBalance
	ParentAccountID *string
	Description     *string
	ActivityClass   *ActivityClass
}

func (a GLAccount) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"account_number": mvalue.String(a.AccountNumber),
		"account_name":   mvalue.String(a.AccountName),
		"account_type":   mvalue.String(string(a.AccountType)),
		"normal_balance": mvalue.String(string(a.NormalBalance)),
	}

	if a.ParentAccountID != nil {
		m["parent_account_id"] = mvalue.String(*a.ParentAccountID)
	} else {
		m["parent_account_id"] = mvalue.Null()
	}

	if a.Description != nil {
		m["description"] = mvalue.String(*a.Description)
	} else {
		m["description"] = mvalue.Null()
	}

	if a.ActivityClass != nil {
		m["activity_class"] = mvalue.String(string(*a.ActivityClass))
	} else {
		m["activity_class"] = mvalue.Null()
	}

	baseToMap(a.Base, m)

	return m
}

func (a *GLAccount) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	a.Base = base

	if v, ok := m["account_number"]; ok {
		if s, err := v.AsString(); err == nil {
			a.AccountNumber = s
		}
	}

	if v, ok := m["account_name"]; ok {
		if s, err := v.AsString(); err == nil {
			a.AccountName = s
		}
	}

	if v, ok := m["account_type"]; ok {
		if s, err := v.AsString(); err == nil {
			a.AccountType = AccountType(s)
		}
	}

	if v, ok := m["normal_balance"]; ok {
		if s, err := v.AsString(); err == nil {
			a.NormalBalance = NormalBalance(s)
		}
	}

	if v, ok := m["parent_account_id"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			a.ParentAccountID = &s
		}
	}

	if v, ok := m["description"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			a.Description = &s
		}
	}

	if v, ok := m["activity_class"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			ac := ActivityClass(s)
			a.ActivityClass = &ac
		}
	}

	return nil
}

// GLAccountBalance tracks running totals for one account, maintained
// exclusively by the posting routine.
type GLAccountBalance struct {
	Base
	GLAccountID         string
	CurrentDebitBalance decimal.Decimal
	CurrentCreditBalance decimal.Decimal
	Currency            string
	LastPostedDate      *mvalue.Value
}

func (b GLAccountBalance) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"gl_account_id":          mvalue.String(b.GLAccountID),
		"current_debit_balance":  mvalue.Float(decimalToFloat(b.CurrentDebitBalance)),
		"current_credit_balance": mvalue.Float(decimalToFloat(b.CurrentCreditBalance)),
		"currency":               mvalue.String(b.Currency),
	}

	if b.LastPostedDate != nil {
		m["last_posted_date"] = *b.LastPostedDate
	} else {
		m["last_posted_date"] = mvalue.Null()
	}

	baseToMap(b.Base, m)

	return m
}

func (b *GLAccountBalance) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	b.Base = base

	if v, ok := m["gl_account_id"]; ok {
		if s, err := v.AsString(); err == nil {
			b.GLAccountID = s
		}
	}

	if v, ok := m["current_debit_balance"]; ok {
		if f, err := v.AsFloat(); err == nil {
			b.CurrentDebitBalance = decimal.NewFromFloat(f)
		}
	}

	if v, ok := m["current_credit_balance"]; ok {
		if f, err := v.AsFloat(); err == nil {
			b.CurrentCreditBalance = decimal.NewFromFloat(f)
		}
	}

	if v, ok := m["currency"]; ok {
		if s, err := v.AsString(); err == nil {
			b.Currency = s
		}
	}

	if v, ok := m["last_posted_date"]; ok && !v.IsNull() {
		vv := v
		b.LastPostedDate = &vv
	}

	return nil
}

func decimalToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// JournalEntry is the accounting-transaction header.
type JournalEntry struct {
	Base
	JournalNumber   string
	Description     string
	EntryDate       mvalue.Value
	PostingDate     *mvalue.Value
	Reference       *string
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	PostedByUserID  *string
	IsPosted        bool
}

func (j JournalEntry) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"journal_number": mvalue.String(j.JournalNumber),
		"description":    mvalue.String(j.Description),
		"entry_date":     j.EntryDate,
		"total_debit":    mvalue.Float(decimalToFloat(j.TotalDebit)),
		"total_credit":   mvalue.Float(decimalToFloat(j.TotalCredit)),
		"is_posted":      mvalue.Bool(j.IsPosted),
	}

	if j.PostingDate != nil {
		m["posting_date"] = *j.PostingDate
	} else {
		m["posting_date"] = mvalue.Null()
	}

	if j.Reference != nil {
		m["reference"] = mvalue.String(*j.Reference)
	} else {
		m["reference"] = mvalue.Null()
	}

	if j.PostedByUserID != nil {
		m["posted_by_user_id"] = mvalue.String(*j.PostedByUserID)
	} else {
		m["posted_by_user_id"] = mvalue.Null()
	}

	baseToMap(j.Base, m)

	return m
}

func (j *JournalEntry) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	j.Base = base

	if v, ok := m["journal_number"]; ok {
		if s, err := v.AsString(); err == nil {
			j.JournalNumber = s
		}
	}

	if v, ok := m["description"]; ok {
		if s, err := v.AsString(); err == nil {
			j.Description = s
		}
	}

	if v, ok := m["entry_date"]; ok {
		j.EntryDate = v
	}

	if v, ok := m["posting_date"]; ok && !v.IsNull() {
		vv := v
		j.PostingDate = &vv
	}

	if v, ok := m["reference"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			j.Reference = &s
		}
	}

	if v, ok := m["total_debit"]; ok {
		if f, err := v.AsFloat(); err == nil {
			j.TotalDebit = decimal.NewFromFloat(f)
		}
	}

	if v, ok := m["total_credit"]; ok {
		if f, err := v.AsFloat(); err == nil {
			j.TotalCredit = decimal.NewFromFloat(f)
		}
	}

	if v, ok := m["posted_by_user_id"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			j.PostedByUserID = &s
		}
	}

	if v, ok := m["is_posted"]; ok {
		if b, err := v.AsBool(); err == nil {
			j.IsPosted = b
		}
	}

	return nil
}

// JournalEntryDetail is one balanced line of a JournalEntry.
type JournalEntryDetail struct {
	Base
	JournalEntryID string
	GLAccountID    string
	DebitAmount    decimal.Decimal
	CreditAmount   decimal.Decimal
	Notes          *string
}

func (d JournalEntryDetail) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"journal_entry_id": mvalue.String(d.JournalEntryID),
		"gl_account_id":    mvalue.String(d.GLAccountID),
		"debit_amount":     mvalue.Float(decimalToFloat(d.DebitAmount)),
		"credit_amount":    mvalue.Float(decimalToFloat(d.CreditAmount)),
	}

	if d.Notes != nil {
		m["notes"] = mvalue.String(*d.Notes)
	} else {
		m["notes"] = mvalue.Null()
	}

	baseToMap(d.Base, m)

	return m
}

func (d *JournalEntryDetail) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	d.Base = base

	if v, ok := m["journal_entry_id"]; ok {
		if s, err := v.AsString(); err == nil {
			d.JournalEntryID = s
		}
	}

	if v, ok := m["gl_account_id"]; ok {
		if s, err := v.AsString(); err == nil {
			d.GLAccountID = s
		}
	}

	if v, ok := m["debit_amount"]; ok {
		if f, err := v.AsFloat(); err == nil {
			d.DebitAmount = decimal.NewFromFloat(f)
		}
	}

	if v, ok := m["credit_amount"]; ok {
		if f, err := v.AsFloat(); err == nil {
			d.CreditAmount = decimal.NewFromFloat(f)
		}
	}

	if v, ok := m["notes"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			d.Notes = &s
		}
	}

	return nil
}
