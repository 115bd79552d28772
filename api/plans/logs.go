package plans

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/agvfleet/core/dispatch/logging"
)

// NewLogHandler returns an HTTP handler exposing the plan log via GET.
// Query parameters: start and end (RFC3339), robot_id, aborted (bool).
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func parseQuery(r *http.Request) (logging.LogQuery, error) {
	var q logging.LogQuery
	v := r.URL.Query()
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("aborted"); s != "" {
		if q.AbortedOnly, err = strconv.ParseBool(s); err != nil {
			return q, err
		}
	}
	q.RobotID = v.Get("robot_id")
	return q, nil
}
