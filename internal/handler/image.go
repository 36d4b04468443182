package handler

import (
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emotionwall/internal/config"
	"github.com/emotionwall/internal/fileserver"
)

// ImageHandler serves post images: locally when FILE_SERVICE_URL is empty,
// otherwise proxied to the image microservice.
type ImageHandler struct {
	cfg         *config.Config
	imageSvc    *fileserver.Service
	imageClient *http.Client
	imageBase   string
}

func NewImageHandler(cfg *config.Config) *ImageHandler {
	h := &ImageHandler{cfg: cfg}
	if cfg.FileServiceURL == "" {
		h.imageSvc = fileserver.New(cfg.UploadDir, cfg.MaxUploadSize)
	} else {
		h.imageClient = &http.Client{Timeout: 60 * time.Second}
		h.imageBase = strings.TrimSuffix(cfg.FileServiceURL, "/")
	}
	return h
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.imageSvc != nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
		h.imageSvc.Upload(w, r)
		return
	}
	// Proxy to the image microservice (Content-Length is required for
	// multipart parsing on the far side).
	proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.imageBase+"/upload", nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	proxyReq.Header.Set("Content-Type", r.Header.Get("Content-Type"))
	proxyReq.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if r.ContentLength > 0 {
		proxyReq.ContentLength = r.ContentLength
	}
	resp, err := h.imageClient.Do(proxyReq)
	if err != nil {
		writeError(w, http.StatusBadGateway, "image service unavailable")
		return
	}
	defer resp.Body.Close()
	copyProxyHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	if h.imageSvc != nil {
		h.imageSvc.Serve(w, r, filename)
		return
	}
	proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.imageBase+"/images/"+url.PathEscape(filename), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp, err := h.imageClient.Do(proxyReq)
	if err != nil {
		writeError(w, http.StatusBadGateway, "image service unavailable")
		return
	}
	defer resp.Body.Close()
	copyProxyHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func copyProxyHeaders(w http.ResponseWriter, resp *http.Response) {
	for k, v := range resp.Header {
		if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, "Content-Type") ||
			strings.EqualFold(k, "Cache-Control") {
			w.Header()[k] = v
		}
	}
}
