package api

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxUploadBytes bounds CSV uploads.
const maxUploadBytes = 32 << 20

// handleIngestCSV handles POST /api/v1/ingest/csv. The body is either the
// raw CSV, optionally gzip encoded, or a multipart form with the file in
// field "file".
func (h *Handler) handleIngestCSV(w http.ResponseWriter, r *http.Request) {
	if h.ingestion == nil {
		writeError(w, http.StatusServiceUnavailable, "csv ingestion is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid gzip body: "+err.Error())
			return
		}
		defer gz.Close()
		body = gz
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart upload must carry a \"file\" field")
			return
		}
		defer file.Close()
		body = file
	}

	res, err := h.ingestion.IngestCSV(r.Context(), body)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
