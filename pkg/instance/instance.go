package instance

import "os"

// GetID returns the replica identifier used to tag lock ownership. It prefers
// ALERA_WORKER_ID, then the hostname.
func GetID() string {
	if id := os.Getenv("ALERA_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
