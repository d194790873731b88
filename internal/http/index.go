package http

import (
	_ "embed"
	"net/http"
)

//go:embed web/index.html
var indexPage []byte

// GetIndex handles GET / and serves the dashboard shell. All dynamic content
// arrives through the API endpoints as HTML fragments and JSON.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexPage)
}
