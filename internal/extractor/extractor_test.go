package extractor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	frame := encodeJPEG(t, createTestImage(200, 100, color.White))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part content type = %q, want image/jpeg", ct)
		}
		data, _ := io.ReadAll(file)
		if !bytes.Equal(data, frame) {
			t.Error("uploaded frame differs from input")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces_count":2,"model":"buffalo_l","faces":[
			{"face_index":0,"dim":3,"embedding":[0.1,0.2,0.3],"bbox":[10,10,60,70],"det_score":0.98},
			{"face_index":1,"dim":0,"embedding":[],"bbox":[0,0,1,1],"det_score":0.1}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	result, err := client.Extract(context.Background(), frame)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Width != 200 || result.Height != 100 {
		t.Errorf("dimensions = %dx%d, want 200x100", result.Width, result.Height)
	}
	if result.Model != "buffalo_l" {
		t.Errorf("model = %q", result.Model)
	}
	if len(result.Detections) != 1 {
		t.Fatalf("expected 1 detection (empty embedding skipped), got %d", len(result.Detections))
	}
	d := result.Detections[0]
	if len(d.Encoding) != 3 || d.Encoding[2] != 0.3 {
		t.Errorf("unexpected encoding %v", d.Encoding)
	}
	if d.Score != 0.98 || d.BBox[2] != 60 {
		t.Errorf("unexpected detection %+v", d)
	}
}

func TestExtract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Extract(context.Background(), encodeJPEG(t, createTestImage(10, 10, color.Black)))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestExtract_InvalidImage(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	if _, err := client.Extract(context.Background(), []byte("not an image")); err == nil {
		t.Error("expected error for invalid image")
	}
}

func TestResizeImage(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSize       int
		wantW, wantH  int
	}{
		{"within bounds", 100, 50, 200, 100, 50},
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"square", 300, 300, 150, 150, 150},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := encodePNG(t, createTestImage(tc.width, tc.height, color.Gray{Y: 128}))
			out, err := ResizeImage(data, tc.maxSize)
			if err != nil {
				t.Fatalf("ResizeImage() error = %v", err)
			}
			w, h, err := Dimensions(out)
			if err != nil {
				t.Fatalf("Dimensions() error = %v", err)
			}
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("got %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestEncodeJPEG(t *testing.T) {
	data := encodePNG(t, createTestImage(20, 20, color.White))
	out, err := EncodeJPEG(data)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if detectMIMEType(out) != "image/jpeg" {
		t.Errorf("expected JPEG output, got %s", detectMIMEType(out))
	}

	jpg := encodeJPEG(t, createTestImage(20, 20, color.White))
	same, err := EncodeJPEG(jpg)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if !bytes.Equal(same, jpg) {
		t.Error("JPEG input should be returned unchanged")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("hello world"), "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tc.want)
			}
		})
	}
}
