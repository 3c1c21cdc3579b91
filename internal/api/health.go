package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status   string    `json:"status"`
	Channel  string    `json:"channel"`
	TimeZone string    `json:"timeZone"`
	Time     time.Time `json:"time"`
}

func (a *api) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	a.jsonResponse(w, http.StatusOK, healthResponse{
		Status:   "available",
		Channel:  a.username,
		TimeZone: a.location.String(),
		Time:     a.now().In(a.location),
	})
}
