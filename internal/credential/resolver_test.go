package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newdok/mailingest/internal/mailbox"
	"github.com/newdok/mailingest/internal/model"
)

func TestPasswordVerbatim(t *testing.T) {
	r := NewResolverWithKeyring(keyring.NewArrayKeyring(nil))

	got, err := r.Password(model.User{MailboxPassword: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestPasswordFromKeyring(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	require.NoError(t, Set(ring, "reader@newdok.store", "s3cret"))

	r := NewResolverWithKeyring(ring)
	got, err := r.Password(model.User{
		MailboxAddress:  "reader@newdok.store",
		MailboxPassword: Ref("reader@newdok.store"),
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestPasswordMissingKeyIsAuthError(t *testing.T) {
	r := NewResolverWithKeyring(keyring.NewArrayKeyring(nil))

	_, err := r.Password(model.User{MailboxAddress: "reader@newdok.store", MailboxPassword: Ref("missing")})
	require.Error(t, err)
	assert.True(t, mailbox.IsAuthError(err))
}

func TestSetGetDelete(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)

	require.NoError(t, Set(ring, "k", "v"))
	got, err := Get(ring, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, Delete(ring, "k"))
	_, err = Get(ring, "k")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}
