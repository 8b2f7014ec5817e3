package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/mdb"
)

func newTestRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pool := mdb.NewPoolForTest(mdb.NewForTest(db))

	return New(pool, nil), mock
}

func TestRecord_WritesAndCommits(t *testing.T) {
	t.Parallel()

	r, mock := newTestRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r.Record(context.Background(), Fields{
		UserID:     "u1",
		UserName:   "Alice",
		ActionType: domain.ActionCreate,
		Severity:   domain.SeverityInfo,
		Module:     "Finance",
		SubModule:  "GeneralLedger",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_SwallowsRepositoryFailure(t *testing.T) {
	t.Parallel()

	r, mock := newTestRecorder(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	assert.NotPanics(t, func() {
		r.Record(context.Background(), Fields{
			UserID:     "u1",
			ActionType: domain.ActionDelete,
			Severity:   domain.SeverityCritical,
			Module:     "Finance",
			SubModule:  "GeneralLedger",
		})
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
