package billing

import (
	"net/http"

	"github.com/adsight/adsight-api/internal/modules/user"
)

var (
	ErrInvalidPlan = &user.DomainError{
		Code:       "ErrInvalidPlan",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "unknown subscription plan",
		TypeURI:    "urn:problem:billing/err-invalid-plan",
	}

	ErrNoSubscription = &user.DomainError{
		Code:       "ErrNoSubscription",
		HTTPStatus: http.StatusNotFound,
		Title:      "Not Found",
		Message:    "no subscription found for this user",
		TypeURI:    "urn:problem:billing/err-no-subscription",
	}

	ErrWebhookSignature = &user.DomainError{
		Code:       "ErrWebhookSignature",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "webhook signature verification failed",
		TypeURI:    "urn:problem:billing/err-webhook-signature",
	}
)
