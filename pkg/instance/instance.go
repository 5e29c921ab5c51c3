package instance

import "os"

// GetID identifies the running process in logs. A platform dyno name wins
// over WORKER_ID, then the hostname, then "<kind>-0".
func GetID(kind string) string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if kind == "" {
		kind = "worker"
	}
	return kind + "-0"
}
