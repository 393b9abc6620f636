package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/shieldops/backend/internal/service"
	"github.com/shieldops/backend/internal/storage"
	"github.com/shieldops/backend/internal/util"
)

// ErrorHandler normalizes the service error taxonomy into HTTP statuses.
// Every authentication failure collapses to 401 so clients have a single
// refresh trigger; everything else keeps its own status and is never
// retried by the client machinery.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if status, ok := statusFor(err); ok {
			writeJSON(c, log, status, err.Error())
			return
		}

		var respErr util.ResponseError
		if errors.As(err, &respErr) {
			writeJSON(c, log, respErr.Status, respErr.Msg)
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			writeJSON(c, log, he.Code, msg)
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		writeJSON(c, log, http.StatusInternalServerError, "internal server error")
	}
}

func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenMalformed),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrRefreshMalformed),
		errors.Is(err, service.ErrRefreshFailed),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrInvalidScanType),
		errors.Is(err, service.ErrInvalidIssueStatus):
		return http.StatusBadRequest, true
	case errors.Is(err, storage.ErrWebsiteExists):
		return http.StatusConflict, true
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrWebsiteNotFound),
		errors.Is(err, storage.ErrScanNotFound),
		errors.Is(err, storage.ErrIssueNotFound):
		return http.StatusNotFound, true
	}
	return 0, false
}

func writeJSON(c echo.Context, log *zap.SugaredLogger, status int, reason string) {
	if err := c.JSON(status, map[string]string{"reason": reason}); err != nil {
		log.Errorw("failed to write json response", "error", err)
	}
}
