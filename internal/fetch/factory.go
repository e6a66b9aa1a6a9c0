package fetch

import "fmt"

const (
	// BackendMemory serves deterministic generated sample data.
	BackendMemory Backend = "memory"
	// BackendFile replays downloaded sales report files from disk.
	BackendFile Backend = "file"
)

// Backend selects which Fetcher implementation serves the report feed.
type Backend string

func (b Backend) String() string {
	return string(b)
}

// IsValid reports whether b names a known backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendFile:
		return true
	default:
		return false
	}
}

// Backends lists every valid backend, for configuration error messages.
func Backends() []Backend {
	return []Backend{BackendMemory, BackendFile}
}

// ParseBackend validates a configured backend name.
func ParseBackend(s string) (Backend, error) {
	b := Backend(s)
	if !b.IsValid() {
		return "", fmt.Errorf("unknown fetch backend %q, must be one of %v", s, Backends())
	}
	return b, nil
}
