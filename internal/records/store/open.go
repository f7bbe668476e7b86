package store

import (
	"fmt"

	"github.com/smazurov/hlsnode/internal/records"
)

// Backend names accepted by Open.
const (
	BackendTOML   = "toml"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string) (records.Store, error) {
	switch backend {
	case "", BackendTOML:
		return NewTOML(path)
	case BackendSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown records backend %q", backend)
	}
}
