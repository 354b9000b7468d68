package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/subscription"
)

func newSubscriptionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Aliases: []string{"sub"},
		Short:   "Inspect and change reader subscriptions",
	}
	cmd.AddCommand(
		newSubscriptionListCommand(a),
		newSubscriptionTransitionCommand(a, "pause", "Stop showing new issues from a brand", subscription.Pause),
		newSubscriptionTransitionCommand(a, "resume", "Show new issues from a paused brand again", subscription.Resume),
	)
	return cmd
}

func newSubscriptionListCommand(a *app) *cobra.Command {
	var userID, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a reader's subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *model.SubscriptionStatus
			if status != "" {
				st := model.SubscriptionStatus(strings.ToUpper(status))
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = &st
			}

			views, err := a.store.ListSubscriptions(cmd.Context(), userID, filter)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSubscriptions(views))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "reader user ID")
	cmd.Flags().StringVar(&status, "status", "", "only CHECK, CONFIRMED or PAUSED")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSubscriptionTransitionCommand(
	a *app,
	use, short string,
	transition func(model.SubscriptionStatus) (model.SubscriptionStatus, error),
) *cobra.Command {
	var userID, newsletterID string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sub, err := a.store.GetSubscription(ctx, userID, newsletterID)
			if err != nil {
				return fmt.Errorf("loading subscription: %w", err)
			}

			next, err := transition(sub.Status)
			if err != nil {
				return err
			}
			if err := a.store.UpdateSubscriptionStatus(ctx, userID, newsletterID, next); err != nil {
				return err
			}

			n, err := a.store.GetNewsletter(ctx, newsletterID)
			if err != nil {
				return err
			}
			updated := *sub
			updated.Status = next
			fmt.Fprint(cmd.OutOrStdout(), renderSubscriptions([]model.SubscriptionView{model.NewSubscriptionView(*n, updated)}))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "reader user ID")
	cmd.Flags().StringVar(&newsletterID, "newsletter", "", "newsletter ID")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("newsletter")
	return cmd
}
