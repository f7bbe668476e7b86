package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/streams"
)

// registerRecordRoutes registers the stream record CRUD endpoints.
func (s *Server) registerRecordRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/api/records",
		Summary:     "List Records",
		Description: "List every stream record with its supervision state",
		Tags:        []string{"records"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.RecordListResponse, error) {
		list, err := s.streamService.ListStreams(ctx)
		if err != nil {
			return nil, s.mapStreamError(err)
		}

		out := make([]models.RecordData, len(list))
		for i, st := range list {
			out[i] = streams.RecordData(st)
		}
		return &models.RecordListResponse{Body: out}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-record",
		Method:        http.MethodPost,
		Path:          "/api/records",
		Summary:       "Create Record",
		Description:   "Create a stream record and its output directory",
		Tags:          []string{"records"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 409, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.RecordCreateRequest) (*models.RecordResponse, error) {
		st, err := s.streamService.CreateStream(ctx, records.CreateParams{
			Name:      input.Body.Name,
			SourceURL: input.Body.URL,
		})
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.RecordResponse{Body: streams.RecordData(*st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/api/records/{id}",
		Summary:     "Get Record",
		Description: "Get a single stream record",
		Tags:        []string{"records"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RecordIDInput) (*models.RecordResponse, error) {
		st, err := s.streamService.GetStream(ctx, input.ID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.RecordResponse{Body: streams.RecordData(*st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-record",
		Method:      http.MethodPut,
		Path:        "/api/records/{id}",
		Summary:     "Update Record",
		Description: "Change a record's name or source URL. Renaming moves the output directory and is refused while the stream runs.",
		Tags:        []string{"records"},
		Errors:      []int{400, 401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RecordUpdateRequest) (*models.RecordResponse, error) {
		st, err := s.streamService.UpdateStream(ctx, input.ID, records.UpdateParams{
			Name:      input.Body.Name,
			SourceURL: input.Body.URL,
		})
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.RecordResponse{Body: streams.RecordData(*st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-record",
		Method:      http.MethodDelete,
		Path:        "/api/records/{id}",
		Summary:     "Delete Record",
		Description: "Stop the stream if it is running, then delete its record and output directory",
		Tags:        []string{"records"},
		Errors:      []int{401, 404, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RecordIDInput) (*models.MessageResponse, error) {
		if err := s.streamService.DeleteStream(ctx, input.ID); err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.MessageResponse{
			Body: models.MessageData{Message: fmt.Sprintf("Record %d deleted successfully", input.ID)},
		}, nil
	})
}

// registerControlRoutes registers start, restart and stop.
func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-stream",
		Method:      http.MethodPost,
		Path:        "/api/records/{id}/start",
		Summary:     "Start Stream",
		Description: "Launch the transcoder for a record and start watching its output",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 409, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RecordIDInput) (*models.StreamControlResponse, error) {
		pid, err := s.streamService.StartStream(ctx, input.ID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamControlResponse{
			Body: models.StreamControlData{
				Message: fmt.Sprintf("Started stream for record %d", input.ID),
				PID:     &pid,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-stream",
		Method:      http.MethodPost,
		Path:        "/api/records/{id}/restart",
		Summary:     "Restart Stream",
		Description: "Stop the record's transcoder if running, clean its output and start it again",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.RecordIDInput) (*models.StreamControlResponse, error) {
		pid, err := s.streamService.RestartStream(ctx, input.ID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamControlResponse{
			Body: models.StreamControlData{
				Message: fmt.Sprintf("Restarted stream for record %d", input.ID),
				PID:     &pid,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{pid}/stop",
		Summary:     "Stop Stream",
		Description: "Kill a transcoder by pid and delete its output files. Stopping a pid that is already gone succeeds.",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 502, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PIDInput) (*models.StreamControlResponse, error) {
		if err := s.streamService.StopStream(ctx, input.PID); err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamControlResponse{
			Body: models.StreamControlData{
				Message: fmt.Sprintf("Stopped pid %d", input.PID),
			},
		}, nil
	})
}
