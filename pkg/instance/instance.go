package instance

import "os"

// GetID identifies this worker replica in logs. It prefers the explicit
// KASUWA_WORKER_ID, then the pod/host name, then a fixed fallback.
func GetID() string {
	if id := os.Getenv("KASUWA_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
