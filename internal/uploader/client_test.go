package uploader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpattn/wastelog/internal/domain"
)

func TestGetUploadStatusParsesForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status/upload-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"uploadStatus": "ready",
			"numberOfRejectedFiles": 0,
			"form": {
				"comment": "hello",
				"summaryLogUpload": {
					"fileId": "file-1",
					"filename": "summary.xlsx",
					"fileStatus": "complete",
					"s3Bucket": "uploads",
					"s3Key": "org/file-1",
					"hasError": false
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/"}, nil)
	status, err := client.GetUploadStatus(context.Background(), "upload-1")
	require.NoError(t, err)
	require.True(t, status.Ready())

	file, ok := status.File()
	require.True(t, ok)
	require.Equal(t, &FormFile{
		FileID:     "file-1",
		Filename:   "summary.xlsx",
		FileStatus: domain.FileStatusComplete,
		S3Bucket:   "uploads",
		S3Key:      "org/file-1",
	}, file)
}

func TestGetUploadStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	status, err := NewClient(Config{BaseURL: server.URL}, nil).GetUploadStatus(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestGetUploadStatusServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, nil).GetUploadStatus(context.Background(), "upload-1")
	require.ErrorContains(t, err, "uploader returned 502")
}

func TestUploadStatusWithoutFile(t *testing.T) {
	status := &UploadStatus{UploadStatus: "pending"}
	require.False(t, status.Ready())

	_, ok := status.File()
	require.False(t, ok)
}
