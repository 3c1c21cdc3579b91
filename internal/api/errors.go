package api

import (
	"encoding/json"
	"net/http"
)

func (a *api) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set(errorHeader, message)
	a.jsonResponse(w, status, map[string]string{"error": message})
}

func (a *api) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
