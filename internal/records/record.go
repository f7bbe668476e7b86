// Package records holds the stream record model and the contract every
// record backend implements.
package records

import "time"

// Record is one stream definition. PID is set while a transcoder process
// believed to be running is supervised for the record.
type Record struct {
	ID        int64     `toml:"id" json:"id"`
	Name      string    `toml:"name" json:"name"`
	SourceURL string    `toml:"url" json:"url"`
	PID       *int      `toml:"pid,omitempty" json:"pid,omitempty"`
	CreatedAt time.Time `toml:"created_at" json:"created_at"`
	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// Running reports whether the record currently holds a pid.
func (r Record) Running() bool {
	return r.PID != nil
}

// CreateParams are the caller-supplied fields of a new record.
type CreateParams struct {
	Name      string
	SourceURL string
}

// UpdateParams carries a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Name      *string
	SourceURL *string
}

// Store persists records. Every mutating call is durable before it returns.
type Store interface {
	List() ([]Record, error)
	GetByID(id int64) (Record, error)
	GetByPID(pid int) (Record, error)
	Create(params CreateParams) (Record, error)
	Update(id int64, params UpdateParams) (Record, error)
	Delete(id int64) (Record, error)
	SetPID(id int64, pid *int) error
	// ClearStalePIDs clears every pid and returns the records that held one.
	ClearStalePIDs() ([]Record, error)
	Close() error
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
