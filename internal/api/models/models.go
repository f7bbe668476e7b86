package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Record models
type RecordData struct {
	ID        int64     `json:"id" example:"1" doc:"Record identifier"`
	Name      string    `json:"name" example:"camA" doc:"Stream name, also the output directory name"`
	URL       string    `json:"url" example:"rtsp://192.168.1.20/stream1" doc:"Source URL"`
	PID       *int      `json:"pid" example:"4242" doc:"Transcoder process id, null when idle"`
	Running   bool      `json:"running" example:"true" doc:"Whether the stream is under supervision"`
	CreatedAt time.Time `json:"created_at,omitempty" doc:"Creation timestamp"`
	UpdatedAt time.Time `json:"updated_at,omitempty" doc:"Last modification timestamp"`
}

type RecordResponse struct {
	Body RecordData
}

type RecordListResponse struct {
	Body []RecordData
}

type RecordCreateData struct {
	URL  string `json:"url" minLength:"1" maxLength:"100" example:"rtsp://192.168.1.20/stream1" doc:"Source URL"`
	Name string `json:"name" minLength:"1" maxLength:"50" example:"camA" doc:"Stream name"`
}

type RecordCreateRequest struct {
	Body RecordCreateData
}

type RecordUpdateData struct {
	URL  *string `json:"url,omitempty" maxLength:"100" example:"rtsp://192.168.1.20/stream2" doc:"New source URL"`
	Name *string `json:"name,omitempty" maxLength:"50" example:"camB" doc:"New stream name"`
}

type RecordUpdateRequest struct {
	ID   int64 `path:"id" example:"1" doc:"Record identifier"`
	Body RecordUpdateData
}

type MessageData struct {
	Message string `json:"message" example:"Record 1 deleted successfully" doc:"Result message"`
}

type MessageResponse struct {
	Body MessageData
}

// Stream control models
type StreamControlData struct {
	Message string `json:"message" example:"Started stream for record 1" doc:"Result message"`
	PID     *int   `json:"pid" example:"4242" doc:"Transcoder process id after the operation"`
}

type StreamControlResponse struct {
	Body StreamControlData
}

// Supervisor models
type WatchdogData struct {
	PID          int       `json:"pid" example:"4242" doc:"Supervised process id"`
	RecordID     int64     `json:"record_id" example:"1" doc:"Record owning the process"`
	Name         string    `json:"name" example:"camA" doc:"Stream name"`
	OutputDir    string    `json:"output_dir" example:"/var/www/html/streams/camA" doc:"Monitored output directory"`
	StartedAt    time.Time `json:"started_at" doc:"When supervision started"`
	LastChecked  time.Time `json:"last_checked,omitempty" doc:"Last completed directory scan"`
	LastOutput   time.Time `json:"last_output,omitempty" doc:"Newest file modification time seen"`
	OutputFiles  int       `json:"output_files" example:"11" doc:"Files seen by the last scan"`
	OutputAgeSec float64   `json:"output_age_seconds" example:"3.2" doc:"Age of the newest output file"`
}

type SupervisorData struct {
	PollInterval   string         `json:"poll_interval" example:"10s" doc:"Watchdog poll interval"`
	StaleThreshold string         `json:"stale_threshold" example:"2m0s" doc:"Staleness threshold"`
	Watchdogs      []WatchdogData `json:"watchdogs" doc:"Active watchdogs"`
	Count          int            `json:"count" example:"1" doc:"Number of supervised processes"`
}

type SupervisorResponse struct {
	Body SupervisorData
}

type RecordIDInput struct {
	ID int64 `path:"id" example:"1" doc:"Record identifier"`
}

type PIDInput struct {
	PID int `path:"pid" minimum:"1" example:"4242" doc:"Transcoder process id"`
}
