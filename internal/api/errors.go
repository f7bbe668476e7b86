package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/hlsnode/internal/streams"
)

// mapStreamError maps domain errors to HTTP errors.
func (s *Server) mapStreamError(err error) error {
	var streamErr *streams.StreamError
	if !errors.As(err, &streamErr) {
		s.logger.Error("Unclassified error", "error", err)
		return huma.Error500InternalServerError("internal server error", err)
	}

	switch streamErr.Code {
	case streams.ErrCodeStreamNotFound:
		return huma.Error404NotFound(streamErr.Message, err)
	case streams.ErrCodeStreamExists, streams.ErrCodeStreamRunning:
		return huma.Error409Conflict(streamErr.Message, err)
	case streams.ErrCodeInvalidParams:
		return huma.Error400BadRequest(streamErr.Message, err)
	case streams.ErrCodeSpawnFailed, streams.ErrCodeKillFailed:
		return huma.Error502BadGateway(streamErr.Message, err)
	case streams.ErrCodeStoreError, streams.ErrCodeFilesystemError:
		return huma.Error500InternalServerError(streamErr.Message, err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}
