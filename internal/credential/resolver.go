package credential

import (
	"strings"
	"sync"

	"github.com/99designs/keyring"

	"github.com/newdok/mailingest/internal/mailbox"
	"github.com/newdok/mailingest/internal/model"
)

// RefPrefix marks a stored mailbox password as a keyring reference.
const RefPrefix = "keyring:"

// Ref returns the stored-password form of a keyring key.
func Ref(key string) string {
	return RefPrefix + key
}

// Resolver turns a user's stored mailbox password into the secret to log in with.
type Resolver struct {
	open func() (keyring.Keyring, error)

	once sync.Once
	ring keyring.Keyring
	err  error
}

// NewResolver opens the keyring lazily, the first time a reference is resolved.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{open: func() (keyring.Keyring, error) { return Open(cfg) }}
}

// NewResolverWithKeyring uses an already opened keyring.
func NewResolverWithKeyring(ring keyring.Keyring) *Resolver {
	return &Resolver{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// Password returns the user's stored password verbatim, or the keyring
// secret it references. A reference that cannot be resolved is reported as
// an authentication failure for that user's mailbox.
func (r *Resolver) Password(u model.User) (string, error) {
	key, isRef := strings.CutPrefix(u.MailboxPassword, RefPrefix)
	if !isRef {
		return u.MailboxPassword, nil
	}

	r.once.Do(func() { r.ring, r.err = r.open() })
	if r.err != nil {
		return "", &mailbox.AuthError{Address: u.MailboxAddress, Err: r.err}
	}

	secret, err := Get(r.ring, key)
	if err != nil {
		return "", &mailbox.AuthError{Address: u.MailboxAddress, Err: err}
	}
	return secret, nil
}
