package notesink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/types"
)

var trailingV1Re = regexp.MustCompile(`/v1/*$`)

// File is an in-memory file to upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader sends files to {base}/file/upload, where base is target_url
// without its trailing /v1. Uploads are attempted once.
type Uploader struct {
	HTTP *http.Client
}

// NewUploader returns an Uploader with a 2 minute timeout.
func NewUploader() *Uploader {
	return &Uploader{HTTP: &http.Client{Timeout: 2 * time.Minute}}
}

type uploadResponse struct {
	Status   int    `json:"status"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

func uploadBase(s *config.Settings) string {
	return strings.TrimRight(trailingV1Re.ReplaceAllString(s.TargetURL, ""), "/")
}

// Upload posts f as the multipart "file" field.
func (u *Uploader) Upload(ctx context.Context, s *config.Settings, f File) (types.Attachment, error) {
	if err := s.CheckTarget(); err != nil {
		return types.Attachment{}, err
	}
	if f.Name == "" || len(f.Data) == 0 {
		return types.Attachment{}, apperr.New(apperr.InvalidInput, "no file to upload")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = http.DetectContentType(f.Data)
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return types.Attachment{}, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return types.Attachment{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return types.Attachment{}, fmt.Errorf("close multipart: %w", err)
	}

	att, err := u.post(ctx, s, uploadBase(s)+"/file/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		applog.Error("upload.failed", err, "name", f.Name)
		return types.Attachment{}, err
	}
	applog.Info("upload.done", "name", att.Name, "path", att.Path, "size", att.Size)
	return att, nil
}

// UploadByURL asks the note service to fetch a remote file itself.
func (u *Uploader) UploadByURL(ctx context.Context, s *config.Settings, fileURL string) (types.Attachment, error) {
	if err := s.CheckTarget(); err != nil {
		return types.Attachment{}, err
	}
	if strings.TrimSpace(fileURL) == "" {
		return types.Attachment{}, apperr.New(apperr.InvalidInput, "no file URL to upload")
	}

	body, err := json.Marshal(map[string]string{"url": fileURL})
	if err != nil {
		return types.Attachment{}, fmt.Errorf("marshal request: %w", err)
	}
	att, err := u.post(ctx, s, uploadBase(s)+"/file/upload-by-url", "application/json", bytes.NewReader(body))
	if err != nil {
		applog.Error("upload.failed", err, "url", fileURL)
		return types.Attachment{}, err
	}
	applog.Info("upload.done", "url", fileURL, "path", att.Path, "size", att.Size)
	return att, nil
}

func (u *Uploader) post(ctx context.Context, s *config.Settings, endpoint, contentType string, body io.Reader) (types.Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return types.Attachment{}, apperr.Wrap(apperr.UploadFailed, err, "upload failed")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", s.AuthKey)

	client := u.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return types.Attachment{}, apperr.Wrap(apperr.UploadFailed, err, "upload failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.Attachment{}, apperr.New(apperr.UploadFailed, "upload failed: %d", resp.StatusCode)
	}

	var data uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.Attachment{}, apperr.Wrap(apperr.UploadFailed, err, "upload response format error")
	}
	if data.Status != http.StatusOK || data.FilePath == "" {
		return types.Attachment{}, apperr.New(apperr.UploadFailed, "upload response format error")
	}
	return types.Attachment{Name: data.FileName, Path: data.FilePath, Size: data.Size, Type: data.Type}, nil
}
