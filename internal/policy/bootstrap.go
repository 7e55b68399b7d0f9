package policy

import (
	"context"
	"sync"
)

// UserCounter returns the number of stored users.
type UserCounter func(ctx context.Context) (int64, error)

// BootstrapState tracks whether the next registration may become the first Superuser.
type BootstrapState int

const (
	BootstrapUnknown BootstrapState = iota
	BootstrapOpen                   // no users yet: next registration is promoted
	BootstrapClosed
)

func (s BootstrapState) String() string {
	switch s {
	case BootstrapOpen:
		return "open"
	case BootstrapClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Bootstrap is the application-scoped first-registration flag. It starts
// Unknown, is resolved against the user count on the first request, and is
// consumed by at most one registration.
//
// Known limitation: two registrations racing while the table is empty can
// both pass the commit-time recount when they run in separate transactions
// that do not see each other's insert. The Superuser ceiling still caps the
// damage at two promoted accounts.
type Bootstrap struct {
	mu    sync.Mutex
	state BootstrapState
}

func NewBootstrap() *Bootstrap { return &Bootstrap{} }

func (b *Bootstrap) State() BootstrapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Observe resolves an Unknown state from the current user count. Later calls
// are no-ops.
func (b *Bootstrap) Observe(ctx context.Context, count UserCounter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BootstrapUnknown {
		return nil
	}
	n, err := count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		b.state = BootstrapOpen
	} else {
		b.state = BootstrapClosed
	}
	return nil
}

// ClaimSuperuser is called while persisting a registration. It returns true
// only when the flag is open and a recount (normally inside the registration
// transaction) still sees zero users; in that case the flag closes.
// A non-zero recount also closes the flag.
func (b *Bootstrap) ClaimSuperuser(ctx context.Context, count UserCounter) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BootstrapUnknown {
		n, err := count(ctx)
		if err != nil {
			return false, err
		}
		if n > 0 {
			b.state = BootstrapClosed
			return false, nil
		}
		b.state = BootstrapOpen
	}
	if b.state != BootstrapOpen {
		return false, nil
	}
	n, err := count(ctx)
	if err != nil {
		return false, err
	}
	b.state = BootstrapClosed
	return n == 0, nil
}

// Reset returns the flag to Unknown so the next request recounts. Used when a
// promoted registration rolled back.
func (b *Bootstrap) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BootstrapUnknown
}
