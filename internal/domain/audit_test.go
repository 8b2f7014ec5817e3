package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/mvalue"
)

func TestAuditRecord_ToMapFromMapRoundTripsJSONFields(t *testing.T) {
	t.Parallel()

	sessionID := "sess-1"
	reason := "year-end close"

	original := &AuditRecord{
		Base: Base{ID: "audit-1", Status: StatusActive, CreatedBy: "u1"},
		UserID:       "u1",
		UserName:     "Alice",
		SessionID:    &sessionID,
		ActionType:   ActionUpdate,
		Severity:     SeverityWarning,
		Module:       "Finance",
		SubModule:    "GLAccount",
		ChangeReason: &reason,
		BeforeData:   map[string]any{"account_name": "Cash"},
		AfterData:    map[string]any{"account_name": "Petty Cash"},
		Metadata:     map[string]any{"ip": "10.0.0.1"},
		IsCompliant:  true,
	}

	m := original.ToMap()

	var roundTripped AuditRecord
	require.NoError(t, roundTripped.FromMap(m))

	assert.Equal(t, original.UserID, roundTripped.UserID)
	assert.Equal(t, original.ActionType, roundTripped.ActionType)
	assert.Equal(t, original.Severity, roundTripped.Severity)
	require.NotNil(t, roundTripped.SessionID)
	assert.Equal(t, *original.SessionID, *roundTripped.SessionID)
	assert.Equal(t, original.BeforeData, roundTripped.BeforeData)
	assert.Equal(t, original.AfterData, roundTripped.AfterData)
	assert.Equal(t, original.Metadata, roundTripped.Metadata)
	assert.True(t, roundTripped.IsCompliant)
}

func TestAuditRecord_ToMapNilJSONFieldsAreNull(t *testing.T) {
	t.Parallel()

	a := &AuditRecord{UserID: "u1", ActionType: ActionCreate, Severity: SeverityInfo}

	m := a.ToMap()

	assert.True(t, m["before_data"].IsNull())
	assert.True(t, m["after_data"].IsNull())
	assert.True(t, m["metadata"].IsNull())
	assert.True(t, m["session_id"].IsNull())
}

func TestAuditRecord_FromMapTreatsMalformedJSONAsAbsent(t *testing.T) {
	t.Parallel()

	m := map[string]mvalue.Value{
		"user_id":      mvalue.String("u1"),
		"action_type":  mvalue.String(string(ActionDelete)),
		"before_data":  mvalue.String("not-json"),
		"is_compliant": mvalue.Bool(false),
	}

	var a AuditRecord
	require.NoError(t, a.FromMap(m))

	assert.Nil(t, a.BeforeData)
	assert.Equal(t, ActionDelete, a.ActionType)
}
