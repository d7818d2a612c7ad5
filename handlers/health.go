package handlers

import "net/http"

// Healthz reports liveness; captionerReady tells whether the model client is built yet
func Healthz(captionerReady func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := captionerReady != nil && captionerReady()
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "captioner_ready": ready})
	}
}
