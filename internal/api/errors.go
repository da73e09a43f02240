package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/api/respond"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
)

// writeServiceError maps domain and AI gateway errors onto the response envelope.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var ve model.ValidationError
	var ne model.NotFoundError
	var ce model.ConflictError
	switch {
	case errors.As(err, &ve):
		respond.WriteBadRequest(w, ve.Message)
	case errors.As(err, &ne):
		respond.WriteNotFound(w, ne.Message)
	case errors.As(err, &ce):
		respond.WriteConflict(w, ce.Message)
	case errors.Is(err, openai.ErrRateLimited):
		respond.WriteError(w, http.StatusTooManyRequests, openai.UserMessage(err))
	case errors.Is(err, openai.ErrNotConfigured), errors.Is(err, openai.ErrUnavailable):
		respond.WriteError(w, http.StatusServiceUnavailable, openai.UserMessage(err))
	case errors.Is(err, openai.ErrTimeout):
		respond.WriteError(w, http.StatusGatewayTimeout, openai.UserMessage(err))
	case errors.Is(err, openai.ErrUnauthorized), errors.Is(err, openai.ErrContentPolicy),
		errors.Is(err, openai.ErrBadResponse), errors.Is(err, openai.ErrRequest):
		log.Warn().Err(err).Msg("ai gateway error")
		respond.WriteError(w, http.StatusBadGateway, openai.UserMessage(err))
	default:
		log.Error().Err(err).Msg("request failed")
		respond.WriteInternalError(w, "internal error")
	}
}
