package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"koalaswap/internal/koala"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	StatusCode      int    `json:"statusCode"`
	Error           string `json:"error"`
	Message         string `json:"message"`
	BaseWrapTxHash  string `json:"baseWrapTxHash,omitempty"`
	QuoteWrapTxHash string `json:"quoteWrapTxHash,omitempty"`
	TxHash          string `json:"txHash,omitempty"`
}

// badRequestError marks malformed input rejected before the orchestrator runs.
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(kind koala.Kind) int {
	switch kind {
	case koala.KindPoolNotFound, koala.KindPositionNotFound:
		return http.StatusNotFound
	case koala.KindMissingParameter,
		koala.KindInvalidAmount,
		koala.KindUnsupportedToken,
		koala.KindUnsupportedNetwork,
		koala.KindWalletNotFound,
		koala.KindInsufficientAllowance,
		koala.KindInsufficientNativeBalance:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bad badRequestError
	if errors.As(err, &bad) {
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{
			StatusCode: http.StatusBadRequest,
			Error:      "BadRequest",
			Message:    bad.msg,
		})
		return
	}

	var typed *koala.Error
	if !errors.As(err, &typed) {
		s.logger.Error("unclassified handler error", zap.Error(err), zap.String("path", r.URL.Path))
		s.writeJSON(w, r, http.StatusInternalServerError, errorBody{
			StatusCode: http.StatusInternalServerError,
			Error:      "InternalServerError",
			Message:    http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	status := statusOf(typed.Kind)
	s.writeJSON(w, r, status, errorBody{
		StatusCode:      status,
		Error:           string(typed.Kind),
		Message:         typed.Error(),
		BaseWrapTxHash:  typed.BaseWrapTxHash,
		QuoteWrapTxHash: typed.QuoteWrapTxHash,
		TxHash:          typed.TxHash,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encode response", zap.Error(err), zap.String("path", r.URL.Path))
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return badRequest("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func queryString(q url.Values, key string) string {
	return strings.TrimSpace(q.Get(key))
}

func queryDecimal(q url.Values, key string) (*decimal.Decimal, error) {
	raw := queryString(q, key)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, badRequest("invalid %s: %s", key, raw)
	}
	return &value, nil
}
