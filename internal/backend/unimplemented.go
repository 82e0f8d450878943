package backend

import (
	"context"
	"errors"
)

// ErrNoDriver is returned by UnimplementedClient, which stands in for
// the real native array-database client library. That library is an
// external collaborator linked in by a production build; this module
// only defines the contract it must satisfy.
var ErrNoDriver = errors.New("no backend driver linked into this build")

// UnimplementedClient satisfies Client but always fails to connect. It
// lets the gateway start up and serve /version and static content even
// when no native driver has been wired in, while making every
// session-dependent endpoint fail loudly with ErrNoDriver rather than
// panicking on a nil Client.
type UnimplementedClient struct{}

// Connect implements Client.
func (UnimplementedClient) Connect(context.Context, string, int, string, string) (Conn, error) {
	return nil, ErrNoDriver
}
