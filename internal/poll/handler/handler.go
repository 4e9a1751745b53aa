// Package handler exposes the poll HTTP surface: creation, reads, and
// the vote endpoint. Handlers decode, delegate, and translate errors;
// every rule lives in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"livepoll/internal/platform/middleware"
	"livepoll/internal/poll/models"
	"livepoll/internal/ratelimit"
	id "livepoll/pkg/domain"
	dErrors "livepoll/pkg/domain-errors"
	"livepoll/pkg/platform/httputil"
	"livepoll/pkg/platform/middleware/metadata"
)

// Service defines the poll operations the handler depends on.
type Service interface {
	CreatePoll(ctx context.Context, req models.CreatePollRequest) (*models.CreatePollResponse, error)
	GetPoll(ctx context.Context, pollID id.PollID) (*models.Poll, error)
	RecordVote(ctx context.Context, pollID id.PollID, optionID id.OptionID, fingerprint, sourceAddr string) (*models.Poll, error)
}

// Handler handles poll-related endpoints.
type Handler struct {
	logger  *slog.Logger
	polls   Service
	limiter *ratelimit.Limiter
}

// New creates a new poll Handler. The limiter may be nil, in which case
// the vote endpoint is unthrottled.
func New(polls Service, limiter *ratelimit.Limiter, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		polls:   polls,
		limiter: limiter,
	}
}

// Register registers the poll routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	pollRouter := chi.NewRouter()
	pollRouter.Use(middleware.Recovery(h.logger))
	pollRouter.Use(middleware.RequestID)
	pollRouter.Use(middleware.Logger(h.logger))
	pollRouter.Use(middleware.Timeout(30 * time.Second))
	pollRouter.Use(middleware.ContentTypeJSON)
	pollRouter.Use(metadata.ClientMetadata)
	pollRouter.Post("/api/polls", h.handleCreatePoll)
	pollRouter.Get("/api/polls/{pollID}", h.handleGetPoll)
	pollRouter.Post("/api/polls/{pollID}/vote", h.handleVote)

	r.Mount("/", pollRouter)
}

func (h *Handler) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create poll request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.polls.CreatePoll(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.WarnContext(ctx, "create poll rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create poll",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pollID, err := id.ParsePollID(chi.URLParam(r, "pollID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	poll, err := h.polls.GetPoll(ctx, pollID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to fetch poll",
				"request_id", middleware.GetRequestID(ctx),
				"poll_id", pollID.String(),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, poll)
}

// handleVote admits the attempt through the rate limiter, then hands it
// to the ledger. Throttling keys on the derived client address, the
// same value the ledger hashes for duplicate suppression.
func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	pollID, err := id.ParsePollID(chi.URLParam(r, "pollID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sourceAddr := metadata.GetClientIP(ctx)

	if h.limiter != nil {
		result := h.limiter.Admit(ctx, sourceAddr)
		if !result.Allowed {
			h.logger.WarnContext(ctx, "vote attempt throttled",
				"request_id", requestID,
				"poll_id", pollID.String(),
			)
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many vote attempts, try again later"))
			return
		}
	}

	var req models.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid vote request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	optionID, err := id.ParseOptionID(req.OptionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	poll, err := h.polls.RecordVote(ctx, pollID, optionID, req.Fingerprint, sourceAddr)
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeInternal):
			h.logger.ErrorContext(ctx, "failed to record vote",
				"request_id", requestID,
				"poll_id", pollID.String(),
				"error", err.Error(),
			)
		default:
			h.logger.WarnContext(ctx, "vote rejected",
				"request_id", requestID,
				"poll_id", pollID.String(),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, poll)
}
