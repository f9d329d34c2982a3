package platform

import (
	"errors"
	"net/http"

	"github.com/adsight/adsight-api/internal/modules/user"
)

// errNoBusinessAccounts marks the terminal Instagram case where the Facebook
// identity has no Instagram Business Account attached to any of its pages.
var errNoBusinessAccounts = errors.New("no instagram business accounts found")

// The platform module reuses the user module's DomainError type so the
// shared RFC7807 formatter handles both the same way.

var (
	ErrUnsupportedPlatform = &user.DomainError{
		Code:       "ErrUnsupportedPlatform",
		HTTPStatus: http.StatusBadRequest,
		Title:      "Bad Request",
		Message:    "unsupported platform",
		TypeURI:    "urn:problem:platform/err-unsupported-platform",
	}

	ErrPlatformNotConnected = &user.DomainError{
		Code:       "ErrPlatformNotConnected",
		HTTPStatus: http.StatusNotFound,
		Title:      "Not Found",
		Message:    "this platform is not connected",
		TypeURI:    "urn:problem:platform/err-platform-not-connected",
	}

	ErrPlatformNotAllowed = &user.DomainError{
		Code:       "ErrPlatformNotAllowed",
		HTTPStatus: http.StatusForbidden,
		Title:      "Forbidden",
		Message:    "your plan does not include this platform",
		TypeURI:    "urn:problem:platform/err-platform-not-allowed",
	}

	ErrPlatformLimit = &user.DomainError{
		Code:       "ErrPlatformLimit",
		HTTPStatus: http.StatusForbidden,
		Title:      "Forbidden",
		Message:    "platform connection limit reached for your plan",
		TypeURI:    "urn:problem:platform/err-platform-limit",
	}
)

// OAuth callback failure codes. These never surface as HTTP errors: the
// callback redirects to the profile page with error=<code> in the query
// string so the UI flow stays usable.
const (
	CallbackErrUserDenied         = "user_denied"
	CallbackErrMissingParams      = "missing_params"
	CallbackErrInvalidState       = "invalid_state"
	CallbackErrNotAuthenticated   = "not_authenticated"
	CallbackErrNoBusinessAccounts = "instagram_no_business_accounts"
	CallbackErrFailed             = "callback_failed"
)
