package domain

import (
	"encoding/json"

	"github.com/corebooks/erp-core/internal/mvalue"
)

// ActionType classifies what kind of mutation an AuditRecord describes.
type ActionType string

const (
	ActionCreate       ActionType = "Create"
	ActionUpdate       ActionType = "Update"
	ActionDelete       ActionType = "Delete"
	ActionStatusChange ActionType = "StatusChange"
	ActionPost         ActionType = "Post"
)

// Severity grades an AuditRecord for downstream filtering/alerting.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// AuditRecord is the immutable, append-only record written by the Audit
// Recorder after a mutation commits. Free-form maps are stored as JSON
// text columns; ToMap/FromMap marshal through encoding/json rather than
// flattening, since their shape is not known ahead of time.
type AuditRecord struct {
	Base
	UserID        string
	UserName      string
	SessionID     *string
	ActionType    ActionType
	Severity      Severity
	Module        string
	SubModule     string
	EntityID      *string
	EntityType    *string
	EntityName    *string
	IPAddress     *string
	UserAgent     *string
	BeforeData    map[string]any
	AfterData     map[string]any
	ChangeReason  *string
	Metadata      map[string]any
	IsCompliant   bool
	ComplianceNote *string
}

func (a AuditRecord) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"user_id":      mvalue.String(a.UserID),
		"user_name":    mvalue.String(a.UserName),
		"action_type":  mvalue.String(string(a.ActionType)),
		"severity":     mvalue.String(string(a.Severity)),
		"module":       mvalue.String(a.Module),
		"sub_module":   mvalue.String(a.SubModule),
		"is_compliant": mvalue.Bool(a.IsCompliant),
	}

	optStr := func(key string, v *string) {
		if v != nil {
			m[key] = mvalue.String(*v)
		} else {
			m[key] = mvalue.Null()
		}
	}

	optStr("session_id", a.SessionID)
	optStr("entity_id", a.EntityID)
	optStr("entity_type", a.EntityType)
	optStr("entity_name", a.EntityName)
	optStr("ip_address", a.IPAddress)
	optStr("user_agent", a.UserAgent)
	optStr("change_reason", a.ChangeReason)
	optStr("compliance_note", a.ComplianceNote)

	m["before_data"] = jsonValue(a.BeforeData)
	m["after_data"] = jsonValue(a.AfterData)
	m["metadata"] = jsonValue(a.Metadata)

	baseToMap(a.Base, m)

	return m
}

func jsonValue(v map[string]any) mvalue.Value {
	if v == nil {
		return mvalue.Null()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return mvalue.Null()
	}

	return mvalue.String(string(b))
}

func parseJSONMap(v mvalue.Value) map[string]any {
	if v.IsNull() {
		return nil
	}

	s, err := v.AsString()
	if err != nil || s == "" {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}

	return out
}

func (a *AuditRecord) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	a.Base = base

	str := func(key string) string {
		if v, ok := m[key]; ok {
			if s, err := v.AsString(); err == nil {
				return s
			}
		}

		return ""
	}

	optStr := func(key string) *string {
		if v, ok := m[key]; ok && !v.IsNull() {
			if s, err := v.AsString(); err == nil {
				return &s
			}
		}

		return nil
	}

	a.UserID = str("user_id")
	a.UserName = str("user_name")
	a.ActionType = ActionType(str("action_type"))
	a.Severity = Severity(str("severity"))
	a.Module = str("module")
	a.SubModule = str("sub_module")
	a.SessionID = optStr("session_id")
	a.EntityID = optStr("entity_id")
	a.EntityType = optStr("entity_type")
	a.EntityName = optStr("entity_name")
	a.IPAddress = optStr("ip_address")
	a.UserAgent = optStr("user_agent")
	a.ChangeReason = optStr("change_reason")
	a.ComplianceNote = optStr("compliance_note")

	if v, ok := m["is_compliant"]; ok {
		if b, err := v.AsBool(); err == nil {
			a.IsCompliant = b
		}
	}

	if v, ok := m["before_data"]; ok {
		a.BeforeData = parseJSONMap(v)
	}

	if v, ok := m["after_data"]; ok {
		a.AfterData = parseJSONMap(v)
	}

	if v, ok := m["metadata"]; ok {
		a.Metadata = parseJSONMap(v)
	}

	return nil
}
