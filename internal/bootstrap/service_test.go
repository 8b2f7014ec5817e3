package bootstrap

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/pkg/mlog"
)

func TestNewService_FailsWhenPoolCannotInitialise(t *testing.T) {
	cfg := &Config{DBMaxConnections: 0}

	_, err := NewService(context.Background(), cfg, mlog.Nop{})

	require.Error(t, err)
}

func TestService_RunShutsDownOnContextCancel(t *testing.T) {
	pool := mdb.NewPoolForTest()

	svc := &Service{
		Pool:   pool,
		Logger: mlog.Nop{},
		metricsServer: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
