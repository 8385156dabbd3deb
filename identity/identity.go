// Package identity runs units of work as a designated remote user.
//
// The identity travels in the context handed to the work; filesystem
// clients created inside the work read it with FromContext and connect as
// that user.
package identity

import (
	"context"
	"os/user"

	"github.com/cockroachdb/errors"
)

// ErrNoUser is returned by RunAs when the identity names no user.
var ErrNoUser = errors.New("identity: no user")

// Identity is the remote user a unit of work runs as.
type Identity struct {
	User string
}

// Work is a unit of work returning a count.
type Work func(ctx context.Context) (int, error)

type contextKey struct{}

// RunAs executes work with id attached to its context and returns its
// result unchanged.
func RunAs(ctx context.Context, id Identity, work Work) (int, error) {
	if id.User == "" {
		return 0, ErrNoUser
	}
	return work(NewContext(ctx, id))
}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity carried by ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Current returns the identity of the process user.
func Current() (Identity, error) {
	u, err := user.Current()
	if err != nil {
		return Identity{}, errors.Wrap(err, "looking up current user")
	}
	return Identity{User: u.Username}, nil
}
