// Package subscription holds the subscription lifecycle rules.
//
// A subscription is created by the first delivery from a brand: CHECK for
// brands that ask the reader to confirm, CONFIRMED otherwise. A later
// delivery confirms a CHECK subscription. Deliveries while PAUSED are kept
// but hidden. The reader moves a subscription between CONFIRMED and PAUSED.
package subscription

import (
	"errors"
	"fmt"

	"github.com/newdok/mailingest/internal/model"
)

// ErrInvalidTransition is returned for a user action the current status does not allow.
var ErrInvalidTransition = errors.New("invalid subscription transition")

// Decision is the outcome of a delivery for the subscription it belongs to.
type Decision struct {
	// Create means no subscription exists and one must be inserted with Status.
	Create bool

	// Update means the existing subscription moves to Status.
	Update bool

	Status model.SubscriptionStatus

	// Visible is the visibility of the article produced by the delivery.
	Visible bool
}

// Decide returns what a delivery does to the current subscription, which
// is nil when the user has none for the brand.
func Decide(current *model.Subscription, doubleCheck bool) Decision {
	if current == nil {
		status := model.SubscriptionConfirmed
		if doubleCheck {
			status = model.SubscriptionCheck
		}
		return Decision{Create: true, Status: status, Visible: true}
	}

	switch current.Status {
	case model.SubscriptionCheck:
		return Decision{Update: true, Status: model.SubscriptionConfirmed, Visible: true}
	case model.SubscriptionPaused:
		return Decision{Status: model.SubscriptionPaused, Visible: false}
	default:
		return Decision{Status: current.Status, Visible: true}
	}
}

// Pause returns the status after the reader pauses a subscription.
func Pause(current model.SubscriptionStatus) (model.SubscriptionStatus, error) {
	if current != model.SubscriptionConfirmed {
		return current, fmt.Errorf("pausing %s subscription: %w", current, ErrInvalidTransition)
	}
	return model.SubscriptionPaused, nil
}

// Resume returns the status after the reader resumes a paused subscription.
func Resume(current model.SubscriptionStatus) (model.SubscriptionStatus, error) {
	if current != model.SubscriptionPaused {
		return current, fmt.Errorf("resuming %s subscription: %w", current, ErrInvalidTransition)
	}
	return model.SubscriptionConfirmed, nil
}
