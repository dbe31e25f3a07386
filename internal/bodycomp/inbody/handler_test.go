package inbody

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	result ExtractionResult
}

func (p *stubProvider) ExtractInBodyData(_ context.Context, _ string) ExtractionResult {
	return p.result
}

func multipartUpload(t *testing.T, fieldName, fileName string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/bodycomp/extract", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandler_Extract(t *testing.T) {
	weight := 84.3
	handler := NewHandler(&stubProvider{
		result: ExtractionResult{
			WeightKg:   &weight,
			Confidence: 1.0 / 3,
			RawText:    "Weight 84.3 kg",
		},
	})

	rr := httptest.NewRecorder()
	handler.HandleExtract(rr, multipartUpload(t, "file", "sheet.png", []byte("png bytes")))

	require.Equal(t, http.StatusOK, rr.Code)

	var result ExtractionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.NotNil(t, result.WeightKg)
	assert.Equal(t, 84.3, *result.WeightKg)
	assert.Nil(t, result.SkeletalMuscleKg)
	assert.Equal(t, 1.0/3, result.Confidence)
}

func TestHandler_Extract_failureFallback(t *testing.T) {
	// a failed recognition still yields a 200 with a zero result,
	// the client then falls back to manual entry
	handler := NewHandler(&stubProvider{result: ExtractionResult{}})

	rr := httptest.NewRecorder()
	handler.HandleExtract(rr, multipartUpload(t, "file", "sheet.pdf", []byte("pdf bytes")))

	require.Equal(t, http.StatusOK, rr.Code)

	var result ExtractionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Nil(t, result.WeightKg)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.RawText)
}

func TestHandler_Extract_fileMissing(t *testing.T) {
	handler := NewHandler(&stubProvider{result: ExtractionResult{}})

	rr := httptest.NewRecorder()
	handler.HandleExtract(rr, multipartUpload(t, "not-the-file", "sheet.png", []byte("png bytes")))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
