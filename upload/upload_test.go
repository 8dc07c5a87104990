package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProcessImageKeepsSmallImages(t *testing.T) {
	data, w, h, err := processImage(bytes.NewReader(testPNG(t, 640, 480)))
	if err != nil {
		t.Fatalf("processImage: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", w, h)
	}
	if len(data) == 0 {
		t.Error("no encoded output")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg", format)
	}
	if cfg.Width != 640 {
		t.Errorf("output width = %d, want 640", cfg.Width)
	}
}

func TestProcessImageDownscalesWideImages(t *testing.T) {
	_, w, h, err := processImage(bytes.NewReader(testPNG(t, 3840, 2160)))
	if err != nil {
		t.Fatalf("processImage: %v", err)
	}
	if w != maxImageWidth {
		t.Errorf("width = %d, want %d", w, maxImageWidth)
	}
	if h != 1080 {
		t.Errorf("height = %d, want 1080 (aspect preserved)", h)
	}
}

func TestProcessImageRejectsNonImages(t *testing.T) {
	if _, _, _, err := processImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("processImage accepted garbage input")
	}
}

func imgbbStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.FormValue("image") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"status":  200,
			"data": map[string]any{
				"id":          "abc123",
				"title":       r.FormValue("name"),
				"url":         "https://i.ibb.co/abc123/img.jpg",
				"display_url": "https://i.ibb.co/abc123/img.jpg",
				"delete_url":  "https://ibb.co/abc123/deadbeef",
				"width":       640,
				"height":      480,
				"size":        12345,
				"thumb":       map[string]any{"url": "https://i.ibb.co/abc123/thumb.jpg"},
				"medium":      map[string]any{"url": "https://i.ibb.co/abc123/medium.jpg"},
			},
		})
	}))
}

func TestImgBBClientUpload(t *testing.T) {
	srv := imgbbStub(t)
	defer srv.Close()

	client := NewImgBBClient("test-key", srv.URL)
	img, err := client.Upload(context.Background(), []byte("fakebytes"), "photo")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if img.ID != "abc123" {
		t.Errorf("ID = %q, want abc123", img.ID)
	}
	if img.DeleteURL == "" || img.ThumbURL == "" {
		t.Errorf("missing URLs in %+v", img)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", img.Width, img.Height)
	}
}

func TestImgBBClientUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	client := NewImgBBClient("bad-key", srv.URL)
	if _, err := client.Upload(context.Background(), []byte("x"), ""); err == nil {
		t.Fatal("Upload succeeded against error response")
	}
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	srv := imgbbStub(t)
	defer srv.Close()

	h := NewHandler(NewImgBBClient("test-key", srv.URL), zap.NewNop())
	e := echo.New()

	body, contentType := multipartBody(t, "image", map[string][]byte{"photo.png": testPNG(t, 320, 240)})
	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	if err := h.handleUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handleUpload: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool  `json:"success"`
		Data    Image `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.URL == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleUploadRejectsMissingFile(t *testing.T) {
	h := NewHandler(NewImgBBClient("test-key", "https://api.imgbb.com/1"), zap.NewNop())
	e := echo.New()

	body, contentType := multipartBody(t, "wrong", map[string][]byte{"x.png": {1}})
	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	if err := h.handleUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handleUpload: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleBatchUploadToleratesFailures(t *testing.T) {
	srv := imgbbStub(t)
	defer srv.Close()

	h := NewHandler(NewImgBBClient("test-key", srv.URL), zap.NewNop())
	e := echo.New()

	body, contentType := multipartBody(t, "images", map[string][]byte{
		"good.png": testPNG(t, 100, 100),
		"bad.txt":  []byte("not an image"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/upload/images", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	if err := h.handleBatchUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handleBatchUpload: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Uploaded int         `json:"uploaded"`
			Failed   int         `json:"failed"`
			Results  []batchItem `json:"results"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Uploaded != 1 || resp.Data.Failed != 1 {
		t.Errorf("uploaded/failed = %d/%d, want 1/1", resp.Data.Uploaded, resp.Data.Failed)
	}
}

func TestHandleGetInfoNotImplemented(t *testing.T) {
	h := NewHandler(NewImgBBClient("k", "https://api.imgbb.com/1"), zap.NewNop())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/upload/image/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	if err := h.handleGetInfo(c); err != nil {
		t.Fatalf("handleGetInfo: %v", err)
	}
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}
