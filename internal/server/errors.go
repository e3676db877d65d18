package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	matchingdomain "github.com/MNhat168/careerhub/internal/matching/domain"
	paymentdomain "github.com/MNhat168/careerhub/internal/payment/domain"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware converts the last gin error into the response
// envelope. Handlers report failures via AbortWithError and never write
// error bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message, result := mapError(lastErr.Err)
		respond(c, status, message, result)
		c.Abort()
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError translates domain sentinels into HTTP status codes. A limit
// denial carries the full decision so clients can render usage telemetry
// and an upgrade prompt.
func mapError(err error) (int, string, any) {
	var limitErr *enforcerdomain.LimitExceededError
	if errors.As(err, &limitErr) {
		return http.StatusForbidden, "limit_exceeded", limitErr.Decision
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized", nil

	case errors.Is(err, ErrForbidden),
		errors.Is(err, jobdomain.ErrNotJobOwner),
		errors.Is(err, jobdomain.ErrFeatureNotAllowed):
		return http.StatusForbidden, err.Error(), nil

	case errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, enforcerdomain.ErrUserNotFound),
		errors.Is(err, jobdomain.ErrJobNotFound),
		errors.Is(err, subscriptiondomain.ErrPlanNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, paymentdomain.ErrOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, err.Error(), nil

	case errors.Is(err, paymentdomain.ErrDeclined):
		return http.StatusPaymentRequired, "payment_declined", nil

	case errors.Is(err, paymentdomain.ErrAlreadyCaptured),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, subscriptiondomain.ErrAlreadySubscribed),
		errors.Is(err, subscriptiondomain.ErrTrialAlreadyUsed),
		errors.Is(err, subscriptiondomain.ErrVersionConflict),
		errors.Is(err, jobdomain.ErrDuplicateApplication),
		errors.Is(err, jobdomain.ErrJobClosed),
		errors.Is(err, jobdomain.ErrNothingToScore),
		errors.Is(err, userdomain.ErrEmailTaken):
		return http.StatusConflict, err.Error(), nil

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, subscriptiondomain.ErrInvalidTier),
		errors.Is(err, subscriptiondomain.ErrInvalidUser),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingPeriod),
		errors.Is(err, subscriptiondomain.ErrTrialUnavailable),
		errors.Is(err, usagedomain.ErrInvalidAction),
		errors.Is(err, usagedomain.ErrInvalidPeriodKey),
		errors.Is(err, jobdomain.ErrInvalidTitle),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrWeakPassword):
		return http.StatusBadRequest, err.Error(), nil

	case errors.Is(err, enforcerdomain.ErrTrackingUnavailable),
		errors.Is(err, paymentdomain.ErrUnavailable),
		errors.Is(err, matchingdomain.ErrQueueFull):
		return http.StatusServiceUnavailable, err.Error(), nil
	}

	// Internal details stay out of the response body.
	return http.StatusInternalServerError, "internal_error", nil
}
