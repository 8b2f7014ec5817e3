package domain

import "github.com/corebooks/erp-core/internal/mvalue"

// Permission is the authorization token checked at runtime. Name follows
// the "Module.Action" convention (e.g. "Finance.CreateGLAccount").
type Permission struct {
	Base
	Name        string
	Module      string
	Action      string
	Description *string
}

func (p Permission) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"name":   mvalue.String(p.Name),
		"module": mvalue.String(p.Module),
		"action": mvalue.String(p.Action),
	}
	if p.Description != nil {
		m["description"] = mvalue.String(*p.Description)
	} else {
		m["description"] = mvalue.Null()
	}

	baseToMap(p.Base, m)

	return m
}

func (p *Permission) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	p.Base = base

	if v, ok := m["name"]; ok {
		if s, err := v.AsString(); err == nil {
			p.Name = s
		}
	}

	if v, ok := m["module"]; ok {
		if s, err := v.AsString(); err == nil {
			p.Module = s
		}
	}

	if v, ok := m["action"]; ok {
		if s, err := v.AsString(); err == nil {
			p.Action = s
		}
	}

	if v, ok := m["description"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			p.Description = &s
		}
	}

	return nil
}

// Role groups permissions and is granted to users out of band (the User
// type itself is opaque to this core).
type Role struct {
	Base
	Name        string
	Description *string
}

func (r Role) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"name": mvalue.String(r.Name),
	}
	if r.Description != nil {
		m["description"] = mvalue.String(*r.Description)
	} else {
		m["description"] = mvalue.Null()
	}

	baseToMap(r.Base, m)

	return m
}

func (r *Role) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	r.Base = base

	if v, ok := m["name"]; ok {
		if s, err := v.AsString(); err == nil {
			r.Name = s
		}
	}

	if v, ok := m["description"]; ok && !v.IsNull() {
		if s, err := v.AsString(); err == nil {
			r.Description = &s
		}
	}

	return nil
}

// RolePermission is the many-to-many link between a Role and a
// Permission, addressed by permission name rather than permission id.
type RolePermission struct {
	Base
	RoleID         string
	PermissionName string
}

func (rp RolePermission) ToMap() map[string]mvalue.Value {
	m := map[string]mvalue.Value{
		"role_id":         mvalue.String(rp.RoleID),
		"permission_name": mvalue.String(rp.PermissionName),
	}

	baseToMap(rp.Base, m)

	return m
}

func (rp *RolePermission) FromMap(m map[string]mvalue.Value) error {
	base, err := baseFromMap(m)
	if err != nil {
		return err
	}

	rp.Base = base

	if v, ok := m["role_id"]; ok {
		if s, err := v.AsString(); err == nil {
			rp.RoleID = s
		}
	}

	if v, ok := m["permission_name"]; ok {
		if s, err := v.AsString(); err == nil {
			rp.PermissionName = s
		}
	}

	return nil
}

// Wildcard permission names, per the authorization algorithm in 4.D.
const (
	WildcardManage = "ALL.Manage"
	WildcardRead   = "ALL.Read"
)
