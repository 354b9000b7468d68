package cli

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/newdok/mailingest/internal/model"
)

func newBrandCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brand",
		Short: "Manage newsletter brands",
	}
	cmd.AddCommand(newBrandAddCommand(a), newBrandListCommand(a))
	return cmd
}

func newBrandAddCommand(a *app) *cobra.Command {
	var n model.Newsletter

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a newsletter brand and its sending addresses",
		Long: `Register a brand. Mail from any of its addresses is stored as an
article for the receiving reader. When --name or --email is omitted an
interactive form asks for the missing fields.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n.BrandName == "" || n.BrandEmail == "" {
				if err := brandForm(&n).Run(); err != nil {
					return err
				}
			}
			if err := validateBrand(n); err != nil {
				return err
			}

			if err := a.store.CreateNewsletter(cmd.Context(), &n); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderNewsletter(n))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&n.BrandName, "name", "", "brand display name")
	f.StringVar(&n.BrandEmail, "email", "", "primary sending address")
	f.StringVar(&n.SecondEmail, "second-email", "", "alternate sending address")
	f.StringVar(&n.ThirdEmail, "third-email", "", "further alternate sending address")
	f.BoolVar(&n.DoubleCheck, "double-check", false, "first mail asks the reader to confirm")
	f.StringVar(&n.ImageURL, "image-url", "", "brand logo URL")

	return cmd
}

func brandForm(n *model.Newsletter) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Brand name").
				Value(&n.BrandName).
				Validate(validateRequired("Brand name")),
			huh.NewInput().
				Title("Sending address").
				Description("Primary From address of the newsletter").
				Placeholder("news@brand.com").
				Value(&n.BrandEmail).
				Validate(validateAddress),
			huh.NewInput().
				Title("Second address").
				Description("Optional, often the confirmation sender").
				Value(&n.SecondEmail).
				Validate(validateOptionalAddress),
			huh.NewInput().
				Title("Third address").
				Value(&n.ThirdEmail).
				Validate(validateOptionalAddress),
			huh.NewConfirm().
				Title("Does the first mail ask for confirmation?").
				Value(&n.DoubleCheck),
		),
	)
}

func validateBrand(n model.Newsletter) error {
	if err := validateRequired("name")(n.BrandName); err != nil {
		return err
	}
	if err := validateAddress(n.BrandEmail); err != nil {
		return err
	}
	if err := validateOptionalAddress(n.SecondEmail); err != nil {
		return err
	}
	return validateOptionalAddress(n.ThirdEmail)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateAddress(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("address is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	return nil
}

func validateOptionalAddress(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateAddress(s)
}

func newBrandListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered brands",
		RunE: func(cmd *cobra.Command, args []string) error {
			brands, err := a.store.ListNewsletters(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range brands {
				fmt.Fprint(cmd.OutOrStdout(), renderNewsletter(n))
			}
			return nil
		},
	}
}
