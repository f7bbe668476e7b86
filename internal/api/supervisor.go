package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/hlsnode/internal/api/models"
)

func (s *Server) registerSupervisorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-supervisor",
		Method:      http.MethodGet,
		Path:        "/api/supervisor",
		Summary:     "Supervisor Status",
		Description: "Watchdog settings and every supervised transcoder with the age of its newest output file",
		Tags:        []string{"streams"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.SupervisorResponse, error) {
		status := s.streamService.SupervisorStatus(ctx)

		watchdogs := make([]models.WatchdogData, 0, len(status.Watchdogs))
		for _, info := range status.Watchdogs {
			wd := models.WatchdogData{
				PID:         info.PID,
				RecordID:    info.RecordID,
				Name:        info.Name,
				OutputDir:   info.OutputDir,
				StartedAt:   info.StartedAt,
				LastChecked: info.LastChecked,
				LastOutput:  info.LastOutput,
				OutputFiles: info.OutputFiles,
			}
			if !info.LastOutput.IsZero() {
				wd.OutputAgeSec = status.Now.Sub(info.LastOutput).Seconds()
			}
			watchdogs = append(watchdogs, wd)
		}

		return &models.SupervisorResponse{
			Body: models.SupervisorData{
				PollInterval:   status.Settings.PollInterval.String(),
				StaleThreshold: status.Settings.StaleThreshold.String(),
				Watchdogs:      watchdogs,
				Count:          len(watchdogs),
			},
		}, nil
	})
}
