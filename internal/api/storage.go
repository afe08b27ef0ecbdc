package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// BlobStore is the opaque file storage collaborator: write an object, remove
// it, and derive its public URL. Paths are forward-slash keys namespaced by
// the owning user id.
type BlobStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	Remove(ctx context.Context, path string) error
	PublicURL(path string) string
}

// blobStore is nil until InitBlobStoreFromEnv configures one; upload/delete
// report a storage-not-configured failure in that case.
var blobStore BlobStore

// InitBlobStoreFromEnv wires the bucket REST client when PILOT_STORAGE_URL is
// set. Absence degrades the upload endpoints rather than crashing startup.
func InitBlobStoreFromEnv() {
	base := os.Getenv("PILOT_STORAGE_URL")
	if base == "" {
		return
	}
	bucket := os.Getenv("PILOT_STORAGE_BUCKET")
	if bucket == "" {
		bucket = "achievements"
	}
	blobStore = &bucketStore{
		baseURL: strings.TrimRight(base, "/"),
		bucket:  bucket,
		apiKey:  os.Getenv("PILOT_STORAGE_KEY"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// bucketStore talks to a Supabase-style object storage REST API:
// POST   {base}/object/{bucket}/{path}          — upload (no upsert)
// DELETE {base}/object/{bucket}/{path}          — remove
//        {base}/object/public/{bucket}/{path}   — public URL
type bucketStore struct {
	baseURL string
	bucket  string
	apiKey  string
	client  *http.Client
}

func (s *bucketStore) objectURL(path string) string {
	return s.baseURL + "/object/" + s.bucket + "/" + path
}

func (s *bucketStore) do(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *bucketStore) Upload(ctx context.Context, path, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	start := time.Now()
	err = s.do(req)
	RecordExternalOp("storage_upload", time.Since(start), err == nil)
	return err
}

func (s *bucketStore) Remove(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(path), nil)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.do(req)
	RecordExternalOp("storage_remove", time.Since(start), err == nil)
	return err
}

func (s *bucketStore) PublicURL(path string) string {
	return s.baseURL + "/object/public/" + s.bucket + "/" + path
}
