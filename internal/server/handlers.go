package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdok/mailingest/internal/ingest"
	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/store"
	"github.com/newdok/mailingest/internal/subscription"
)

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.log.Warn("readiness check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, errorBody("database unavailable"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// runIngestion performs a run and returns its summary. The run is detached
// from the request so a dropped connection does not abort it.
func (s *Server) runIngestion(c echo.Context) error {
	summary := s.ingest.Run(context.WithoutCancel(c.Request().Context()))
	switch summary.Status {
	case ingest.RunAlreadyRunning:
		return c.JSON(http.StatusAccepted, summary)
	case ingest.RunFailed:
		return c.JSON(http.StatusInternalServerError, summary)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) ingestionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ingest.Status())
}

func (s *Server) listSubscriptions(c echo.Context) error {
	var filter *model.SubscriptionStatus
	switch c.QueryParam("status") {
	case "":
	case "active":
		st := model.SubscriptionConfirmed
		filter = &st
	case "paused":
		st := model.SubscriptionPaused
		filter = &st
	default:
		return c.JSON(http.StatusBadRequest, errorBody("status must be active or paused"))
	}

	views, err := s.store.ListSubscriptions(c.Request().Context(), currentUserID(c), filter)
	if err != nil {
		s.log.Error("listing subscriptions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to list subscriptions"))
	}
	if views == nil {
		views = []model.SubscriptionView{}
	}
	return c.JSON(http.StatusOK, views)
}

type subscriptionRequest struct {
	NewsletterID string `json:"newsletterId"`
}

func (s *Server) pauseSubscription(c echo.Context) error {
	return s.transitionSubscription(c, subscription.Pause)
}

func (s *Server) resumeSubscription(c echo.Context) error {
	return s.transitionSubscription(c, subscription.Resume)
}

func (s *Server) transitionSubscription(
	c echo.Context,
	transition func(model.SubscriptionStatus) (model.SubscriptionStatus, error),
) error {
	var req subscriptionRequest
	if err := c.Bind(&req); err != nil || req.NewsletterID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("newsletterId is required"))
	}

	ctx := c.Request().Context()
	userID := currentUserID(c)

	sub, err := s.store.GetSubscription(ctx, userID, req.NewsletterID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("subscription not found"))
	}
	if err != nil {
		s.log.Error("getting subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to load subscription"))
	}

	next, err := transition(sub.Status)
	if errors.Is(err, subscription.ErrInvalidTransition) {
		return c.JSON(http.StatusConflict, errorBody(err.Error()))
	}

	if err := s.store.UpdateSubscriptionStatus(ctx, userID, req.NewsletterID, next); err != nil {
		s.log.Error("updating subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to update subscription"))
	}

	n, err := s.store.GetNewsletter(ctx, req.NewsletterID)
	if err != nil {
		s.log.Error("getting newsletter", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to load newsletter"))
	}

	updated := *sub
	updated.Status = next
	return c.JSON(http.StatusOK, model.NewSubscriptionView(*n, updated))
}

func (s *Server) articleCount(c echo.Context) error {
	count, err := s.store.ArticleCount(c.Request().Context(), currentUserID(c))
	if err != nil {
		s.log.Error("counting articles", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to count articles"))
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}
