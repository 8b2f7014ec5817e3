package transactional

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/mauth"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/pkg/merrors"
)

func newTestContext(t *testing.T) (*Context, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pool := mdb.NewPoolForTest(mdb.NewForTest(db))
	bus := eventbus.New(nil)

	return New(nil, nil, pool, bus, nil, nil), mock
}

func TestExecuteTransaction_CommitsAndPublishesOnSuccess(t *testing.T) {
	t.Parallel()

	c, mock := newTestContext(t)

	var delivered []eventbus.Event
	c.Events.Subscribe("widget.created", func(evt eventbus.Event) {
		delivered = append(delivered, evt)
	})

	mock.ExpectBegin()
	mock.ExpectCommit()

	ok, err := c.ExecuteTransaction(context.Background(), func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		return true, []eventbus.Event{{Type: "widget.created"}}, nil
	}, "widgets", "create")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, delivered, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTransaction_RollsBackAndSkipsPublishOnFalse(t *testing.T) {
	t.Parallel()

	c, mock := newTestContext(t)

	published := false
	c.Events.Subscribe("widget.created", func(evt eventbus.Event) { published = true })

	mock.ExpectBegin()
	mock.ExpectRollback()

	ok, err := c.ExecuteTransaction(context.Background(), func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		return false, []eventbus.Event{{Type: "widget.created"}}, nil
	}, "widgets", "create")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, published)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTransaction_RollsBackOnWorkError(t *testing.T) {
	t.Parallel()

	c, mock := newTestContext(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	ok, err := c.ExecuteTransaction(context.Background(), func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
		return false, nil, assert.AnError
	}, "widgets", "create")

	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTransaction_PanicRecoversToOperationFailed(t *testing.T) {
	t.Parallel()

	c, mock := newTestContext(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	var ok bool
	var err error
	assert.NotPanics(t, func() {
		ok, err = c.ExecuteTransaction(context.Background(), func(conn *mdb.Connection) (bool, []eventbus.Event, error) {
			panic("boom")
		}, "widgets", "create")
	})

	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckPermission_DeniesWithForbidden(t *testing.T) {
	t.Parallel()

	c, mock := newTestContext(t)

	conn := mdb.NewForTest(nil)
	roles := repository.New[*domain.Role](nil, "roles", func() *domain.Role { return &domain.Role{} }, nil).WithConnection(conn)
	perms := repository.New[*domain.Permission](nil, "permissions", func() *domain.Permission { return &domain.Permission{} }, nil).WithConnection(conn)
	links := repository.New[*domain.RolePermission](nil, "role_permissions", func() *domain.RolePermission { return &domain.RolePermission{} }, nil).WithConnection(conn)
	c.Auth = mauth.New(roles, perms, links, nil, nil, nil)

	ok, err := c.CheckPermission(context.Background(), "u1", nil, "Ledger.Manage", "not allowed")
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.Forbidden))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckPermission_GrantsOnHasPermission(t *testing.T) {
	t.Parallel()

	c, mock := newTestContext(t)

	db, authMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	conn := mdb.NewForTest(db)

	roles := repository.New[*domain.Role](nil, "roles", func() *domain.Role { return &domain.Role{} }, nil).WithConnection(conn)
	perms := repository.New[*domain.Permission](nil, "permissions", func() *domain.Permission { return &domain.Permission{} }, nil).WithConnection(conn)
	links := repository.New[*domain.RolePermission](nil, "role_permissions", func() *domain.RolePermission { return &domain.RolePermission{} }, nil).WithConnection(conn)
	c.Auth = mauth.New(roles, perms, links, nil, nil, nil)

	roleRows := sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "name"}).
		AddRow("role-1", "Active", time.Now(), "system", "Accountant")
	authMock.ExpectQuery(`SELECT \* FROM roles WHERE id = \$1`).WithArgs("role-1").WillReturnRows(roleRows)

	linkRows := sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "role_id", "permission_name"}).
		AddRow("link-1", "Active", time.Now(), "system", "role-1", "Ledger.Manage")
	authMock.ExpectQuery(`SELECT \* FROM role_permissions WHERE role_id = \$1`).WithArgs("role-1").WillReturnRows(linkRows)

	permRows := sqlmock.NewRows([]string{"id", "status", "created_at", "created_by", "name", "module", "action"}).
		AddRow("perm-1", "Active", time.Now(), "system", "Ledger.Manage", "Ledger", "Manage")
	authMock.ExpectQuery(`SELECT \* FROM permissions WHERE name = \$1`).WithArgs("Ledger.Manage").WillReturnRows(permRows)

	ok, err := c.CheckPermission(context.Background(), "u1", []string{"role-1"}, "Ledger.Manage", "not allowed")
	assert.True(t, ok)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}
