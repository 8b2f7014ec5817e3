// Package identity resolves a bearer token into the (user_id, role_ids)
// pair the Authorization Engine consults, treating Casdoor's Session and
// User as the opaque collaborators the core only ever reads from.
package identity

import (
	"context"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/corebooks/erp-core/pkg/mcasdoor"
)

// Resolver wraps a CasdoorConnection to turn a request's bearer token
// into the identity the rest of the core operates on.
type Resolver struct {
	conn *mcasdoor.CasdoorConnection
}

// New constructs a Resolver bound to conn.
func New(conn *mcasdoor.CasdoorConnection) *Resolver {
	return &Resolver{conn: conn}
}

// Resolve parses token locally against Casdoor's certificate and
// returns the subject's user id and the names of the roles attached to
// their Casdoor user record.
func (r *Resolver) Resolve(ctx context.Context, token string) (userID string, roleIDs []string, err error) {
	claims, err := casdoorsdk.ParseJwtToken(token)
	if err != nil {
		return "", nil, err
	}

	roleIDs = make([]string, 0, len(claims.Roles))
	for _, role := range claims.Roles {
		roleIDs = append(roleIDs, role.Name)
	}

	return claims.Id, roleIDs, nil
}
