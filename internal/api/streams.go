package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/repository"
)

// A year of daily streams fits comfortably; the whole batch is one transaction.
const maxUpsertBodyBytes = 256 << 10

type streamPayload struct {
	StartedAt     *string  `json:"startedAt"`
	DurationHours *float64 `json:"durationHours"`
	Title         *string  `json:"title"`
	StreamURL     *string  `json:"streamUrl"`
}

type upsertStreamsRequest struct {
	streamPayload
	Streams []streamPayload `json:"streams"`
}

func (sp streamPayload) input() (domain.StreamInput, error) {
	var in domain.StreamInput

	if sp.StartedAt == nil || *sp.StartedAt == "" {
		return in, errors.New("startedAt is required")
	}
	if sp.DurationHours == nil {
		return in, errors.New("durationHours is required")
	}

	startedAt, err := time.Parse(time.RFC3339Nano, *sp.StartedAt)
	if err != nil {
		return in, errors.New("startedAt must be an ISO 8601 timestamp")
	}

	in.StartedAt = startedAt
	in.DurationHours = *sp.DurationHours
	in.Title = sp.Title
	in.StreamURL = sp.StreamURL

	return in, nil
}

func (a *api) listStreamsHandler(w http.ResponseWriter, r *http.Request) {
	store := storeOK
	srs, err := a.streamRepo.List(r.Context())
	switch {
	case err == nil:
	case repository.IsConnectivityError(err):
		a.logger.Warn("stream store unreachable, serving empty list", zap.Error(err))
		store, srs = storeUnavailable, nil
	default:
		a.logger.Error("failed to list streams", zap.Error(err))
		a.errorResponse(w, r, http.StatusInternalServerError, "failed to list streams")
		return
	}

	if srs == nil {
		srs = []domain.StreamRecord{}
	}
	a.jsonResponse(w, http.StatusOK, map[string]interface{}{"streams": srs, "storeStatus": store})
}

func (a *api) upsertStreamsHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpsertBodyBytes)

	var req upsertStreamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.errorResponse(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		a.errorResponse(w, r, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	if req.Streams == nil {
		a.upsertStream(w, r, req.streamPayload)
		return
	}

	if len(req.Streams) == 0 {
		a.errorResponse(w, r, http.StatusBadRequest, "streams must not be empty")
		return
	}

	ins := make([]domain.StreamInput, 0, len(req.Streams))
	for i, sp := range req.Streams {
		in, err := sp.input()
		if err != nil {
			a.errorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("streams[%d]: %s", i, err))
			return
		}
		ins = append(ins, in)
	}

	srs, err := a.streamRepo.UpsertMany(r.Context(), ins)
	if err != nil {
		a.storeError(w, r, err)
		return
	}

	a.jsonResponse(w, http.StatusCreated, map[string]interface{}{
		"streams": srs,
		"count":   len(srs),
	})
}

func (a *api) upsertStream(w http.ResponseWriter, r *http.Request, sp streamPayload) {
	in, err := sp.input()
	if err != nil {
		a.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sr, err := a.streamRepo.Upsert(r.Context(), in)
	if err != nil {
		a.storeError(w, r, err)
		return
	}

	a.jsonResponse(w, http.StatusCreated, map[string]interface{}{"stream": sr})
}

func (a *api) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		a.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if repository.IsConnectivityError(err) {
		a.logger.Warn("database unreachable", zap.Error(err))
		a.errorResponse(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	a.logger.Error("failed to save streams", zap.Error(err))
	a.errorResponse(w, r, http.StatusInternalServerError, "failed to save streams")
}
