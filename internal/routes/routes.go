package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/metrics"
)

// StatusReader looks up the delivery status of a certificate key.
type StatusReader interface {
	Get(ctx context.Context, key string) (*repository.CertificateStatus, error)
}

// NewRouter wires health, metrics and, when statuses is not nil, certificate
// status lookups.
func NewRouter(metrics *metrics.Metrics, statuses StatusReader, started time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "certificate service healthy",
			"meta": map[string]interface{}{
				"uptime_seconds": int(time.Since(started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	mux.Handle("GET /metrics", metrics.Handler())
	if statuses != nil {
		mux.HandleFunc("GET /certificates/{key}", statusHandler(statuses))
	}
	return mux
}

func statusHandler(statuses StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := statuses.Get(r.Context(), r.PathValue("key"))
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"message": "certificate not found",
			})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"message": "status lookup failed",
			})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data": map[string]interface{}{
					"certificate_key": st.CertificateKey,
					"status":          st.Status,
					"attempts":        st.Attempts,
					"detail":          st.Detail,
					"updated_at":      st.UpdatedAt.UTC(),
				},
			})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
