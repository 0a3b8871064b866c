package notesink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/config"
)

func TestUploadMultipart(t *testing.T) {
	var gotPath, gotAuth, gotName, gotType string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		gotName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(f)
		w.Write([]byte(`{"status":200,"filePath":"/api/file/x.png","fileName":"x.png","size":4,"type":"image/png"}`))
	}))
	defer srv.Close()

	s := configured(srv.URL + "/api/v1")
	att, err := NewUploader().Upload(context.Background(), s, File{Name: "x.png", ContentType: "image/png", Data: []byte("\x89PNG")})
	require.NoError(t, err)

	assert.Equal(t, "/api/file/upload", gotPath)
	assert.Equal(t, "raw-key", gotAuth)
	assert.Equal(t, "x.png", gotName)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("\x89PNG"), gotData)
	assert.Equal(t, "x.png", att.Name)
	assert.Equal(t, "/api/file/x.png", att.Path)
	assert.Equal(t, int64(4), att.Size)
	assert.Equal(t, "image/png", att.Type)
}

func TestUploadByURL(t *testing.T) {
	var gotPath string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"status":200,"filePath":"/api/file/r.jpg","fileName":"r.jpg","size":10,"type":"image/jpeg"}`))
	}))
	defer srv.Close()

	att, err := NewUploader().UploadByURL(context.Background(), configured(srv.URL+"/api/v1/"), "https://img.example/r.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/api/file/upload-by-url", gotPath)
	assert.Equal(t, "https://img.example/r.jpg", body["url"])
	assert.Equal(t, "/api/file/r.jpg", att.Path)
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, `{}`},
		{"status field not 200", http.StatusOK, `{"status":500,"filePath":"/x"}`},
		{"missing file path", http.StatusOK, `{"status":200}`},
		{"not json", http.StatusOK, `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewUploader().Upload(context.Background(), configured(srv.URL), File{Name: "a.txt", Data: []byte("a")})
			assert.True(t, apperr.Is(err, apperr.UploadFailed), "got %v", err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestUploadNotConfigured(t *testing.T) {
	u := NewUploader()
	_, err := u.Upload(context.Background(), config.Defaults(), File{Name: "a", Data: []byte("a")})
	assert.True(t, apperr.Is(err, apperr.NotConfigured))

	_, err = u.UploadByURL(context.Background(), config.Defaults(), "https://x/a.png")
	assert.True(t, apperr.Is(err, apperr.NotConfigured))
}
