package api

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxFileSizeBytes = 5 * 1024 * 1024

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// UploadFile stores a supporting document under the caller's namespace and
// returns its path and public URL.
// POST /upload (multipart, field "file")
func UploadFile(c *gin.Context) {
	requestID := RequestID(c)
	userID := c.GetString("userID")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		Failure(c, 400, CodeValidationError, "File is required", nil)
		return
	}
	if fileHeader.Size > maxFileSizeBytes {
		Failure(c, 400, CodeValidationError, "File is too large", nil)
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedMimeTypes[contentType] {
		Failure(c, 400, CodeValidationError, "Unsupported file type", nil)
		return
	}
	if blobStore == nil {
		Failure(c, 500, "UPLOAD_FAILED", "File storage is not configured", nil)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		Failure(c, 400, "UPLOAD_FAILED", err.Error(), nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxFileSizeBytes+1))
	if err != nil {
		Failure(c, 400, "UPLOAD_FAILED", err.Error(), nil)
		return
	}
	if len(data) > maxFileSizeBytes {
		Failure(c, 400, CodeValidationError, "File is too large", nil)
		return
	}

	ext := "bin"
	if i := strings.LastIndex(fileHeader.Filename, "."); i >= 0 && i < len(fileHeader.Filename)-1 {
		ext = fileHeader.Filename[i+1:]
	}
	path := fmt.Sprintf("%s/%d.%s", userID, time.Now().UnixMilli(), ext)

	if err := blobStore.Upload(c.Request.Context(), path, contentType, data); err != nil {
		logEvent("upload_post_failed", requestID).
			WithFields(logrus.Fields{"user_id": userID, "path": path}).Error(err)
		Failure(c, 400, "UPLOAD_FAILED", err.Error(), nil)
		return
	}

	Success(c, 200, gin.H{"path": path, "url": blobStore.PublicURL(path)}, nil)
}

// DeleteFile removes a previously uploaded object. The path must live under
// the caller's own namespace.
// DELETE /upload?path=
func DeleteFile(c *gin.Context) {
	requestID := RequestID(c)
	userID := c.GetString("userID")

	path := c.Query("path")
	if path == "" {
		Failure(c, 400, CodeValidationError, "path is required", nil)
		return
	}
	if !strings.HasPrefix(path, userID+"/") {
		Failure(c, 403, CodeForbidden, "Forbidden", nil)
		return
	}
	if blobStore == nil {
		Failure(c, 500, "UPLOAD_DELETE_FAILED", "File storage is not configured", nil)
		return
	}

	if err := blobStore.Remove(c.Request.Context(), path); err != nil {
		logEvent("upload_delete_failed", requestID).
			WithFields(logrus.Fields{"user_id": userID, "path": path}).Error(err)
		Failure(c, 400, "UPLOAD_DELETE_FAILED", err.Error(), nil)
		return
	}

	Success(c, 200, gin.H{"message": "File deleted successfully"}, nil)
}
