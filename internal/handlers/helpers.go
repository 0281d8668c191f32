package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/gin-gonic/gin"
)

const maxImageSize = 10 * 1024 * 1024

// currentUser pulls the authenticated user set by the auth middleware.
// Writes the 401 itself so callers can just return on !ok.
func currentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return nil, false
	}
	return user, true
}

// uploadImages stores every file in form field "images" and returns the S3
// keys. Fails fast on the first upload error so the handler can 500 without a
// half-written listing.
func (h *Handlers) uploadImages(ctx context.Context, files []*multipart.FileHeader, userID string) (models.StringArray, error) {
	keys := make(models.StringArray, 0, len(files))
	for _, file := range files {
		data, err := readMultipartFile(file)
		if err != nil {
			return nil, err
		}
		result, err := h.storage.UploadImage(ctx, data, userID, file.Filename)
		if err != nil {
			return nil, err
		}
		keys = append(keys, result.Key)
	}
	return keys, nil
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
