package httptransport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// APILogMiddleware writes one JSON access log line per request to w.
func APILogMiddleware(w io.Writer) func(http.Handler) http.Handler {
	if w == nil {
		w = os.Stdout
	}
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
				}
			},
		},
	)
}

// CORSMiddleware admits the configured front-end origins.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteHTTPError writes the journal's error envelope.
func WriteHTTPError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: code, Message: message})
}

type errorResponse struct {
	Status      string   `json:"status"`
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	CellsFailed []string `json:"cells_failed,omitempty"`
}
