package mediastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const indexFileName = "media-index.json"

var (
	ErrFileNotFound = errors.New("media file not found")
)

type Kind string

const (
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
)

func (k Kind) Valid() bool {
	return k == KindPhoto || k == KindDocument
}

// MediaFile is an entry in the on-disk index. Path never leaves the server,
// clients address files by id.
type MediaFile struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     int       `json:"owner_id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
}

// Info is the client-facing view of a MediaFile, without the disk path.
type Info struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     int       `json:"ownerId"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (f *MediaFile) Info() Info {
	return Info{
		ID:          f.ID,
		OwnerID:     f.OwnerID,
		Kind:        f.Kind,
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        f.Size,
		IsPrivate:   f.IsPrivate,
		CreatedAt:   f.CreatedAt,
	}
}

// DiskStore keeps progress photos and plan documents in per-owner folders
// under one root, with a JSON index file holding the metadata.
type DiskStore struct {
	rootPath string
	index    map[uuid.UUID]*MediaFile
	mutex    sync.RWMutex
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}

	index, err := loadIndex(rootPath)
	if err != nil {
		return nil, fmt.Errorf("load media index: %w", err)
	}

	return &DiskStore{
		rootPath: rootPath,
		index:    index,
	}, nil
}

type SaveParams struct {
	OwnerID     int
	Kind        Kind
	Name        string
	ContentType string
	Size        int64
	IsPrivate   bool
	Content     io.Reader
}

func (s *DiskStore) Save(ctx context.Context, params SaveParams) (_ *MediaFile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "mediastore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("owner.id", params.OwnerID))
	span.SetAttributes(attribute.String("file.name", params.Name))

	name := sanitizeName(params.Name)
	if name == "" {
		return nil, errors.New("invalid file name")
	}
	if !params.Kind.Valid() {
		return nil, errors.New("invalid media kind")
	}

	log.Debugf("media store: saving [%s] for owner %d", name, params.OwnerID)

	ownerDir := path.Join(s.rootPath, fmt.Sprintf("owner-%d", params.OwnerID))
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return nil, fmt.Errorf("create owner folder: %w", err)
	}

	id := uuid.New()
	filePath := path.Join(ownerDir, fmt.Sprintf("%s_%s", id, name))

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	written, err := io.Copy(dst, params.Content)
	if err != nil {
		removeFileQuietly(filePath)
		return nil, err
	}

	file := &MediaFile{
		ID:          id,
		OwnerID:     params.OwnerID,
		Kind:        params.Kind,
		Name:        name,
		Path:        filePath,
		ContentType: params.ContentType,
		Size:        written,
		IsPrivate:   params.IsPrivate,
		CreatedAt:   time.Now(),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.index[id] = file
	if err := s.saveIndex(); err != nil {
		delete(s.index, id)
		removeFileQuietly(filePath)
		return nil, fmt.Errorf("save media index: %w", err)
	}

	return file, nil
}

func (s *DiskStore) Get(ctx context.Context, id uuid.UUID) (*MediaFile, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "mediastore.get")
	defer span.End()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	file, ok := s.index[id]
	if !ok {
		return nil, ErrFileNotFound
	}

	found := *file
	return &found, nil
}

// Open returns the file contents for streaming to the client. The caller
// closes the reader.
func (s *DiskStore) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *MediaFile, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := os.Open(file.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, err
	}

	return reader, file, nil
}

func (s *DiskStore) Delete(ctx context.Context, id uuid.UUID) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "mediastore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("file.id", id.String()))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	file, ok := s.index[id]
	if !ok {
		return ErrFileNotFound
	}

	if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	delete(s.index, id)
	if err := s.saveIndex(); err != nil {
		return fmt.Errorf("file deleted, but failed to save index: %w", err)
	}

	log.Debugf("media store: file [%s] deleted", id)

	return nil
}

// ListByOwner returns the owner's files, newest first, optionally filtered
// by kind.
func (s *DiskStore) ListByOwner(ctx context.Context, ownerID int, kind Kind) ([]Info, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "mediastore.listByOwner")
	defer span.End()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	files := make([]Info, 0)
	for _, file := range s.index {
		if file.OwnerID != ownerID {
			continue
		}
		if kind != "" && file.Kind != kind {
			continue
		}
		files = append(files, file.Info())
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})

	return files, nil
}

// caller holds the write lock
func (s *DiskStore) saveIndex() error {
	indexJson, err := json.Marshal(s.index)
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(s.rootPath, indexFileName), indexJson, 0o644)
}

func loadIndex(rootPath string) (map[uuid.UUID]*MediaFile, error) {
	exists, err := pkg.PathExists(rootPath, true)
	if err != nil {
		return nil, fmt.Errorf("check root path %s: %w", rootPath, err)
	}
	if !exists {
		return nil, fmt.Errorf("root path [%s] does not exist", rootPath)
	}

	indexPath := path.Join(rootPath, indexFileName)
	indexExists, err := pkg.PathExists(indexPath, false)
	if err != nil {
		return nil, fmt.Errorf("check index path %s: %w", indexPath, err)
	}

	if !indexExists {
		log.Debugln("media index does not exist, starting fresh")
		return map[uuid.UUID]*MediaFile{}, nil
	}

	indexJson, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}

	var index map[uuid.UUID]*MediaFile
	if err := json.Unmarshal(indexJson, &index); err != nil {
		return nil, fmt.Errorf("unmarshal media index: %w", err)
	}

	return index, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return ""
	}
	return name
}

func removeFileQuietly(filePath string) {
	if err := os.Remove(filePath); err != nil {
		log.Errorf("remove file %s: %s", filePath, err)
	}
}
