package cli

import (
	"context"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/newdok/mailingest/internal/credential"
	"github.com/newdok/mailingest/internal/model"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage reader mailboxes",
	}
	cmd.AddCommand(newUserAddCommand(a))
	return cmd
}

func newUserAddCommand(a *app) *cobra.Command {
	var (
		u          model.User
		useKeyring bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a reader's subscription mailbox",
		Long: `Register a mailbox to ingest. Without --password the password is
prompted for. With --keyring the password is kept in the system keyring and
only a reference is written to the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateAddress(u.MailboxAddress); err != nil {
				return err
			}

			if u.MailboxPassword == "" {
				if err := passwordForm(&u.MailboxPassword).Run(); err != nil {
					return err
				}
			}

			if useKeyring {
				ring, err := credential.Open(a.keyringConfig())
				if err != nil {
					return err
				}
				if err := createUserWithKeyring(cmd.Context(), a.store, ring, &u); err != nil {
					return err
				}
			} else if err := a.store.CreateUser(cmd.Context(), &u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s as %s\n", u.MailboxAddress, u.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&u.MailboxAddress, "address", "", "mailbox login address")
	f.StringVar(&u.MailboxPassword, "password", "", "mailbox password")
	f.StringVar(&u.MailboxHost, "host", "", "mailbox host, overriding mailbox.host")
	f.BoolVar(&useKeyring, "keyring", false, "store the password in the system keyring")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

type userCreator interface {
	CreateUser(ctx context.Context, u *model.User) error
}

// createUserWithKeyring moves the password into ring and stores only its
// reference. If the user cannot be stored the keyring entry is put back the
// way it was.
func createUserWithKeyring(ctx context.Context, st userCreator, ring keyring.Keyring, u *model.User) error {
	key := "mailbox-" + u.MailboxAddress
	prev, prevErr := credential.Get(ring, key)

	if err := credential.Set(ring, key, u.MailboxPassword); err != nil {
		return err
	}
	password := u.MailboxPassword
	u.MailboxPassword = credential.Ref(key)

	err := st.CreateUser(ctx, u)
	if err == nil {
		return nil
	}
	u.MailboxPassword = password

	var rerr error
	if prevErr == nil {
		rerr = credential.Set(ring, key, prev)
	} else {
		rerr = credential.Delete(ring, key)
	}
	if rerr != nil {
		return fmt.Errorf("%w (keyring rollback: %v)", err, rerr)
	}
	return err
}

func passwordForm(password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Mailbox password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(validateRequired("Password")),
		),
	)
}
