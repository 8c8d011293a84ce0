package api

import (
	"net/http"
)

func (s *Server) handleUploadStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Uploads == nil {
		jsonError(w, "upload stats unavailable", http.StatusServiceUnavailable)
		return
	}
	body := map[string]any{
		"stats":    s.deps.Uploads.Stats(),
		"sessions": s.deps.Sessions.Len(),
	}
	if s.deps.Imports != nil {
		body["import_queue_depth"] = s.deps.Imports.QueueDepth()
	}
	if s.deps.Events != nil {
		body["event_clients"] = s.deps.Events.ClientCount()
	}
	writeJSON(w, http.StatusOK, body)
}
