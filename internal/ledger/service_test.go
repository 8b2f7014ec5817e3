package ledger

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/audit"
	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/mauth"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/internal/transactional"
)

// grantedRole is the single role every test user carries; it resolves
// via the ALL.Manage wildcard so every permission check in this package
// grants regardless of the specific permission name requested.
const grantedRole = "role-1"

// newTestService wires a Service against one mocked database for the
// ledger's own tables plus audit_logs, and a second mocked database for
// the authorization engine's role/permission lookups. Callers set up
// expectations on mock for the operation under test and on authMock via
// expectGrant.
func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pool := mdb.NewPoolForTest(mdb.NewForTest(db))

	authDB, authMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = authDB.Close() })

	authConn := mdb.NewForTest(authDB)
	roles := repository.New[*domain.Role](nil, "roles", func() *domain.Role { return &domain.Role{} }, nil).WithConnection(authConn)
	perms := repository.New[*domain.Permission](nil, "permissions", func() *domain.Permission { return &domain.Permission{} }, nil).WithConnection(authConn)
	links := repository.New[*domain.RolePermission](nil, "role_permissions", func() *domain.RolePermission { return &domain.RolePermission{} }, nil).WithConnection(authConn)
	auth := mauth.New(roles, perms, links, nil, nil, nil)

	rec := audit.New(pool, nil)
	bus := eventbus.New(nil)
	tc := transactional.New(auth, rec, pool, bus, nil, nil)

	return New(tc, pool, nil, nil), mock, authMock
}

// expectGrant arranges the three-query sequence loadPermissionsForRole
// issues the first time grantedRole is consulted: the role itself, its
// single ALL.Manage link, then the ALL.Manage permission row.
func expectGrant(authMock sqlmock.Sqlmock) {
	now := time.Now()

	roleRows := sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "name"}).
		AddRow(grantedRole, "Active", now, "system", "Accountant")
	authMock.ExpectQuery(`SELECT \* FROM roles WHERE id = \$1`).WithArgs(grantedRole).WillReturnRows(roleRows)

	linkRows := sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "role_id", "permission_name"}).
		AddRow("link-1", "Active", now, "system", grantedRole, "ALL.Manage")
	authMock.ExpectQuery(`SELECT \* FROM role_permissions WHERE role_id = \$1`).WithArgs(grantedRole).WillReturnRows(linkRows)

	permRows := sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "name", "module", "action"}).
		AddRow("perm-1", "Active", now, "system", "ALL.Manage", "ALL", "Manage")
	authMock.ExpectQuery(`SELECT \* FROM permissions WHERE name = \$1`).WithArgs("ALL.Manage").WillReturnRows(permRows)
}

// expectAuditWrite arranges the Begin/Exec/Commit sequence the Audit
// Recorder issues on the main pool after a successful mutation.
func expectAuditWrite(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}
