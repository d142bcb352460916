package http

import "net/http"

// HandleHealth reports liveness for load balancers and uptime checks.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
