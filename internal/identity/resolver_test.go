package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corebooks/erp-core/pkg/mcasdoor"
)

func TestResolve_RejectsMalformedToken(t *testing.T) {
	t.Parallel()

	r := New(&mcasdoor.CasdoorConnection{})

	_, _, err := r.Resolve(context.Background(), "not-a-jwt")

	assert.Error(t, err)
}
