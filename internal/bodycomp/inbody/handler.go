package inbody

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

	log "github.com/sirupsen/logrus"
)

const maxUploadSize = 32 << 20

type Handler struct {
	provider OCRProvider
}

func NewHandler(provider OCRProvider) *Handler {
	return &Handler{
		provider: provider,
	}
}

// HandleExtract takes an uploaded InBody sheet and returns the extraction
// result for user review. Partial extraction is not an error: confidence
// below 1 just means the client asks the user to fill the gaps.
func (handler *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.inbody.extract")
	defer span.End()

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		log.Tracef("inbody extract, parse multipart form: %s", err)
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "error, file missing", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warnf("inbody extract, close uploaded file: %s", err)
		}
	}()

	// the recognition engine works on paths, stash the upload in a temp file
	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmpFile, err := os.CreateTemp("", "inbody-upload-*"+ext)
	if err != nil {
		log.Errorf("inbody extract, create temp file: %s", err)
		http.Error(w, "extract failed", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(tmpFile.Name()); err != nil {
			log.Warnf("inbody extract, remove temp file: %s", err)
		}
	}()

	if _, err := io.Copy(tmpFile, file); err != nil {
		_ = tmpFile.Close()
		log.Errorf("inbody extract, write temp file: %s", err)
		http.Error(w, "extract failed", http.StatusInternalServerError)
		return
	}
	if err := tmpFile.Close(); err != nil {
		log.Errorf("inbody extract, close temp file: %s", err)
		http.Error(w, "extract failed", http.StatusInternalServerError)
		return
	}

	result := handler.provider.ExtractInBodyData(ctx, tmpFile.Name())

	resultJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("inbody extract, marshal result: %s", err)
		http.Error(w, "extract failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("inbody extraction for %s done, confidence %.2f", header.Filename, result.Confidence)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resultJson, http.StatusOK)
}
