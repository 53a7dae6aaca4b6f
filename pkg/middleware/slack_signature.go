package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/WorkniceHR/slack/pkg/metrics"
	"github.com/WorkniceHR/slack/pkg/signature"
)

// maxSlackBody caps the body read for verification. Slack payloads are small.
const maxSlackBody = 1 << 20

// SlackSignature rejects requests that do not carry a valid Slack signature.
// The raw body is verified and then restored so handlers can still bind it.
func SlackSignature(verifier *signature.Verifier, logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			body, err := io.ReadAll(io.LimitReader(req.Body, maxSlackBody+1))
			if err != nil {
				return httperror.NewHTTPError(http.StatusBadRequest, "unable to read request body")
			}
			if len(body) > maxSlackBody {
				return httperror.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			err = verifier.Verify(
				req.Header.Get(signature.HeaderTimestamp),
				req.Header.Get(signature.HeaderSignature),
				body,
			)
			if err != nil {
				metrics.SignatureVerificationsTotal.WithLabelValues("rejected").Inc()
				logger.WithContext(req.Context()).WithError(err).Warn("Rejected Slack request")
				return err
			}

			metrics.SignatureVerificationsTotal.WithLabelValues("ok").Inc()
			return next(c)
		}
	}
}
