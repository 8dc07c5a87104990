package upload

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxBatchSize = 10

// Handler serves the image upload endpoints.
type Handler struct {
	client *ImgBBClient
	log    *zap.Logger
}

// NewHandler creates a Handler backed by the given ImgBB client.
func NewHandler(client *ImgBBClient, log *zap.Logger) *Handler {
	return &Handler{client: client, log: log}
}

// Register mounts the upload routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/image", h.handleUpload)
	g.POST("/images", h.handleBatchUpload)
	g.DELETE("/image/:deleteHash", h.handleDelete)
	g.GET("/image/:id", h.handleGetInfo)
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// uploadOne processes and uploads a single multipart file.
func (h *Handler) uploadOne(ctx context.Context, fh *multipart.FileHeader) (Image, error) {
	if fh.Size > maxUploadSize {
		return Image{}, fmt.Errorf("file too large (max 10MB)")
	}
	src, err := fh.Open()
	if err != nil {
		return Image{}, err
	}
	defer src.Close()

	data, _, _, err := processImage(src)
	if err != nil {
		return Image{}, err
	}

	name := strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	if name == "" || name == "." {
		name = uuid.NewString()
	}
	return h.client.Upload(ctx, data, name)
}

func (h *Handler) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "no image file provided")
	}

	img, err := h.uploadOne(c.Request().Context(), fh)
	if err != nil {
		h.log.Warn("image upload failed",
			zap.String("filename", fh.Filename),
			zap.Error(err))
		return fail(c, http.StatusBadRequest, "UPLOAD_FAILED", err.Error())
	}

	h.log.Info("image uploaded",
		zap.String("filename", fh.Filename),
		zap.String("url", img.URL),
		zap.Int("width", img.Width))
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": img})
}

type batchItem struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Image    *Image `json:"image,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) handleBatchUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "multipart form required")
	}
	files := form.File["images"]
	if len(files) == 0 {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "no image files provided")
	}
	if len(files) > maxBatchSize {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("too many files (max %d)", maxBatchSize))
	}

	ctx := c.Request().Context()
	items := make([]batchItem, len(files))
	var wg sync.WaitGroup
	for i, fh := range files {
		wg.Add(1)
		go func(i int, fh *multipart.FileHeader) {
			defer wg.Done()
			img, err := h.uploadOne(ctx, fh)
			if err != nil {
				items[i] = batchItem{Filename: fh.Filename, Error: err.Error()}
				return
			}
			items[i] = batchItem{Filename: fh.Filename, Success: true, Image: &img}
		}(i, fh)
	}
	wg.Wait()

	uploaded := 0
	for _, it := range items {
		if it.Success {
			uploaded++
		}
	}
	h.log.Info("batch upload finished",
		zap.Int("total", len(files)),
		zap.Int("uploaded", uploaded))
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"uploaded": uploaded,
			"failed":   len(files) - uploaded,
			"results":  items,
		},
	})
}

func (h *Handler) handleDelete(c echo.Context) error {
	hash := c.Param("deleteHash")
	if hash == "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "delete hash required")
	}
	deleteURL := "https://ibb.co/" + hash
	if err := h.client.Delete(c.Request().Context(), deleteURL); err != nil {
		h.log.Warn("image delete failed", zap.String("hash", hash), zap.Error(err))
		return fail(c, http.StatusBadGateway, "DELETE_FAILED", "image deletion failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "image deleted"})
}

// handleGetInfo exists for API symmetry. The hosting service offers no lookup
// endpoint, so this reports Not Implemented.
func (h *Handler) handleGetInfo(c echo.Context) error {
	return fail(c, http.StatusNotImplemented, "NOT_IMPLEMENTED",
		"image lookup is not supported by the hosting service")
}
