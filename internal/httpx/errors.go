package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-course-commerce/internal/errs"
	"github.com/rs/zerolog/hlog"
)

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch errs.Code(err) {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "NOT_FOUND":
		return http.StatusNotFound
	case "ALREADY_EXISTS", "INVALID_STATE_TRANSITION", "CONCURRENCY_CONFLICT", "COUPON_NO_LONGER_APPLICABLE":
		return http.StatusConflict
	case "COUPON_INVALID", "INSUFFICIENT_FUNDS":
		return http.StatusUnprocessableEntity
	case "WALLET_FROZEN":
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Code: errs.Code(err), Message: err.Error()}

	var ve errs.ValidationError
	if errors.As(err, &ve) {
		body.Field, body.Message = ve.Field, ve.Message
	}
	var ce *errs.CouponError
	if errors.As(err, &ce) {
		body.Reasons = ce.Reasons
	}
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("code", body.Code).Msg("request failed")
		body.Message = http.StatusText(status)
	}
	if errs.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Invalid("body", "invalid json")
	}
	return nil
}
