package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/WorkniceHR/slack/pkg/context"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/tracing"
)

// plainTextKey marks routes whose errors are shown to a browser.
const plainTextKey = "plain_text_errors"

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// PlainTextErrors makes the error handler answer with a text/plain body.
func PlainTextErrors() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(plainTextKey, true)
			return next(c)
		}
	}
}

func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		httperr := toHTTPError(err)
		code := httperror.GetStatusCode(httperr)
		if code >= http.StatusInternalServerError {
			logger.WithContext(ctx).WithError(err).Error("api is returning an error")
		} else {
			logger.WithContext(ctx).WithError(err).Warn("api is returning an error")
		}

		if plain, _ := c.Get(plainTextKey).(bool); plain {
			_ = c.String(code, httperr.Message)
			return
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   httperr.Message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      httperr.Meta,
		})
	}
}

// toHTTPError converts domain errors, echo errors and httperrors into one
// shape. Unknown errors become a generic 500 so internals never leak.
func toHTTPError(err error) *httperror.HTTPError {
	var he *echo.HTTPError
	switch {
	case apperrors.KindOf(err) != apperrors.KindUnknown:
		kind := apperrors.KindOf(err)
		return httperror.NewHTTPError(apperrors.HTTPStatus(err), apperrors.Message(err)).AddMetaValue("kind", string(kind))
	case httperror.IsHTTPError(err):
		return httperror.ToHTTPError(err)
	case errors.As(err, &he):
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		return httperror.NewHTTPError(he.Code, message)
	default:
		return httperror.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}
}
