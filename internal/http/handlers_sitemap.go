package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lacs-team/appfun-api/internal/service"
)

// SitemapHandlers serves the generated sitemap.
type SitemapHandlers struct {
	Svc    *service.SitemapService
	Logger *slog.Logger
}

// Sitemap renders the sitemap XML.
// GET /sitemap.xml.
func (h *SitemapHandlers) Sitemap(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "sitemap_unavailable",
			Err:     errors.New("sitemap not configured"),
		})
		return
	}

	body, err := h.Svc.Render(r.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "sitemap render failed", "error", err)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "sitemap_failed",
			Err:     errors.New("sitemap generation failed"),
		})
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		// Client went away; nothing to do.
		return
	}
}
