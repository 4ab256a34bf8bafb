package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the configured comma separated origins. An empty list allows any.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	origins := []string{"*"}
	if strings.TrimSpace(allowedOrigins) != "" {
		origins = origins[:0]
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", AdminTokenHeader, TraceHeader},
		ExposedHeaders: []string{TraceHeader},
		MaxAge:         300,
	})
}
