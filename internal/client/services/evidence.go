package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophqms/internal/client/client"
	"github.com/dmitrijs2005/gophqms/internal/netx"
)

// EvidenceService registers attachments and uploads their content.
type EvidenceService struct {
	client client.Client
	http   *http.Client
}

func NewEvidenceService(c client.Client, h *http.Client) *EvidenceService {
	return &EvidenceService{client: c, http: h}
}

// Attach registers the file at path on the record and, when the server hands
// out an upload URL, PUTs the file there. Without object storage on the
// server side only the metadata is recorded.
func (s *EvidenceService) Attach(ctx context.Context, entityType, entityID, kind, path string) (*client.Attachment, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if fi.IsDir() {
		return nil, false, fmt.Errorf("%s is a directory", path)
	}

	a, err := s.client.AddAttachment(ctx, entityType, entityID, kind, filepath.Base(path))
	if err != nil {
		return nil, false, err
	}
	if a.UploadURL == "" {
		return a, false, nil
	}

	if err := netx.UploadToPresignedURL(ctx, s.http, a.UploadURL, f, fi.Size()); err != nil {
		return a, false, fmt.Errorf("attachment %s registered but upload failed: %w", a.ID, err)
	}
	return a, true, nil
}
