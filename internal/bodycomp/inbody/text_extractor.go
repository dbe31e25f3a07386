package inbody

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/coachfit/coachfit/internal/telemetry/metrics"
	"github.com/coachfit/coachfit/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	// recognition is slow on big scans, but a user is waiting on the
	// other end, so the engine gets a minute and no more
	defaultRecognitionTimeout = 60 * time.Second

	resultCacheSize       = 10 * 1024 * 1024
	resultCacheTTLSeconds = 24 * 60 * 60
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300

	Timeout time.Duration
}

var _ OCRProvider = (*TextExtractor)(nil)

// TextExtractor shells out to pdftotext / pdftoppm+tesseract and runs the
// field extractor over the recognized text. Results are cached by content
// hash so re-uploads of the same sheet skip recognition.
type TextExtractor struct {
	cfg            Config
	runner         Runner
	fields         *FieldExtractor
	cache          *freecache.Cache
	metricsManager *metrics.Manager
}

func NewTextExtractor(cfg Config, metricsManager *metrics.Manager) *TextExtractor {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRecognitionTimeout
	}
	return &TextExtractor{
		cfg:            cfg,
		runner:         execRunner{},
		fields:         NewFieldExtractor(),
		cache:          freecache.NewCache(resultCacheSize),
		metricsManager: metricsManager,
	}
}

func (e *TextExtractor) ExtractInBodyData(ctx context.Context, path string) ExtractionResult {
	ctx, span := tracing.GlobalTracer.Start(ctx, "inbody.extract")
	defer span.End()

	start := time.Now()
	defer func() {
		e.metricsManager.HistOcrDuration.Observe(time.Since(start).Seconds())
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("inbody extraction, read %s: %s", path, err)
		e.countOutcome("failed")
		return ExtractionResult{}
	}

	cacheKey := sha256.Sum256(content)
	if cached, err := e.cache.Get(cacheKey[:]); err == nil {
		var result ExtractionResult
		if err := json.Unmarshal(cached, &result); err == nil {
			log.Debugf("inbody extraction cache hit for %s", path)
			e.countOutcome("cache-hit")
			return result
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	rawText, err := e.recognize(ctx, path)
	if err != nil {
		log.Errorf("inbody extraction failed for %s: %s", path, err)
		e.countOutcome("failed")
		return ExtractionResult{}
	}

	result := e.fields.Extract(rawText)

	if resultJson, err := json.Marshal(result); err == nil {
		if err := e.cache.Set(cacheKey[:], resultJson, resultCacheTTLSeconds); err != nil {
			log.Debugf("inbody extraction, cache set: %s", err)
		}
	}

	e.countOutcome("ok")
	return result
}

func (e *TextExtractor) countOutcome(outcome string) {
	e.metricsManager.CounterInbodyExtractions.With(
		prometheus.Labels{"outcome": outcome},
	).Inc()
}

// recognize picks a strategy based on file extension.
func (e *TextExtractor) recognize(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := e.pdfToText(ctx, path)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		// scanned PDF with no text layer, rasterize and OCR
		return e.pdfToOCR(ctx, path)
	case ".png", ".jpg", ".jpeg", ".tiff", ".bmp":
		return e.tesseractOCR(ctx, path)
	default:
		return "", fmt.Errorf("unsupported extension: %q", filepath.Ext(path))
	}
}

func (e *TextExtractor) pdfToText(ctx context.Context, path string) (string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func (e *TextExtractor) pdfToOCR(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "inbody-pp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Warnf("inbody extraction, remove temp dir %s: %s", tmpDir, err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	if _, _, err := e.runner.Run(
		ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix,
	); err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", errors.New("pdftoppm produced no images")
	}

	var b strings.Builder
	for _, img := range matches {
		text, err := e.tesseractOCR(ctx, img)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func (e *TextExtractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}
