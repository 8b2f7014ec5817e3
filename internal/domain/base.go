// Package domain holds the entities persisted by the core: the common
// Base Record fields, RBAC catalog, audit records, and the general
// ledger model.
package domain

import (
	"time"

	"github.com/corebooks/erp-core/internal/mvalue"
)

// Status is the lifecycle state every Base Record carries.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusPending  Status = "Pending"
	StatusDeleted  Status = "Deleted"
	StatusUnknown  Status = "Unknown"
)

// Base carries the fields every persisted entity shares: an immutable
// id assigned at creation, a lifecycle status, and actor/time stamps.
// Entities embed Base rather than repeating these fields.
type Base struct {
	ID        string
	Status    Status
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt *time.Time
	UpdatedBy *string
}

// Touch stamps the record as updated by actor at the given time. It
// overwrites UpdatedAt and UpdatedBy unconditionally; it does not check
// that at is later than the previous UpdatedAt.
func (b *Base) Touch(at time.Time, actor string) {
	b.UpdatedAt = &at
	b.UpdatedBy = &actor
}

// Record is the generic-repository contract every business entity
// implements: bidirectional conversion to the column-value map a SQL
// row represents, using the tagged Value type for both directions.
type Record interface {
	ToMap() map[string]mvalue.Value
	FromMap(m map[string]mvalue.Value) error
}

func baseToMap(b Base, m map[string]mvalue.Value) {
	m["id"] = mvalue.String(b.ID)
	m["status"] = mvalue.String(string(b.Status))
	m["created_at"] = mvalue.Timestamp(b.CreatedAt)
	m["created_by"] = mvalue.String(b.CreatedBy)

	if b.UpdatedAt != nil {
		m["updated_at"] = mvalue.Timestamp(*b.UpdatedAt)
	} else {
		m["updated_at"] = mvalue.Null()
	}

	if b.UpdatedBy != nil {
		m["updated_by"] = mvalue.String(*b.UpdatedBy)
	} else {
		m["updated_by"] = mvalue.Null()
	}
}

func baseFromMap(m map[string]mvalue.Value) (Base, error) {
	var b Base

	if v, ok := m["id"]; ok {
		s, err := v.AsString()
		if err != nil {
			return b, err
		}

		b.ID = s
	}

	if v, ok := m["status"]; ok {
		s, err := v.AsString()
		if err != nil {
			return b, err
		}

		b.Status = Status(s)
	}

	if v, ok := m["created_at"]; ok && !v.IsNull() {
		t, err := v.AsTimestamp()
		if err != nil {
			return b, err
		}

		b.CreatedAt = t
	}

	if v, ok := m["created_by"]; ok && !v.IsNull() {
		s, err := v.AsString()
		if err != nil {
			return b, err
		}

		b.CreatedBy = s
	}

	if v, ok := m["updated_at"]; ok && !v.IsNull() {
		t, err := v.AsTimestamp()
		if err != nil {
			return b, err
		}

		b.UpdatedAt = &t
	}

	if v, ok := m["updated_by"]; ok && !v.IsNull() {
		s, err := v.AsString()
		if err != nil {
			return b, err
		}

		b.UpdatedBy = &s
	}

	return b, nil
}
