package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/models"
	"github.com/lehigh-university-libraries/chronobooth/internal/providers"
	"github.com/lehigh-university-libraries/chronobooth/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generated = media.Image{MIMEType: media.MIMETypePNG, Data: []byte("\x89PNG\r\n\x1a\ngenerated")}

type fakeService struct {
	mu           sync.Mutex
	prompts      []string
	analysis     string
	analyzeErr   error
	transformErr error
	release      chan struct{}
}

func (f *fakeService) Analyze(context.Context, media.Image) (string, error) {
	return f.analysis, f.analyzeErr
}

func (f *fakeService) Transform(_ context.Context, _ media.Image, prompt string) (media.Image, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return generated, f.transformErr
}

type testServer struct {
	t     *testing.T
	mux   *http.ServeMux
	store *storage.SessionStore
}

func newTestServer(t *testing.T, svc booth.Service, maxUploadBytes int64) *testServer {
	t.Helper()
	store := storage.New("http", func(id string) *booth.Booth { return booth.New(id, svc) })
	mux := http.NewServeMux()
	New(store, nil, maxUploadBytes).Register(mux)
	return &testServer{t: t, mux: mux, store: store}
}

func (s *testServer) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(s.t, err)
		body = bytes.NewReader(data)
	}
	return s.do(method, path, "application/json", body)
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

// createInCamera creates a session and moves it to CAMERA.
func (s *testServer) createInCamera() string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/sessions", "", nil)
	require.Equal(s.t, http.StatusCreated, rec.Code)
	id := decodeSession(s.t, rec).ID

	rec = s.do(http.MethodPost, "/api/sessions/"+id+"/enter", "", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func (s *testServer) uploadPhoto(id string) {
	s.t.Helper()
	photo := media.Image{MIMEType: media.MIMETypeJPEG, Data: []byte("selfie")}
	rec := s.doJSON(http.MethodPost, "/api/sessions/"+id+"/capture", map[string]string{
		"image":  photo.DataURI(),
		"source": "upload",
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	encoded, err := media.EncodeJPEG(img, 90)
	require.NoError(t, err)
	return encoded.Data
}

func multipartBody(t *testing.T, source string, data []byte) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("source", source))
	fw, err := mw.CreateFormFile("file", "frame.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func TestHandleScenes(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, 0)
	rec := srv.do(http.MethodGet, "/api/scenes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var presets []models.ScenePreset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presets))
	require.Len(t, presets, 5)
	assert.Equal(t, "1920s", presets[0].ID)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, 0)

	rec := srv.do(http.MethodPost, "/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeSession(t, rec)
	assert.Equal(t, models.StateLanding, created.State)

	rec = srv.do(http.MethodGet, "/api/sessions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = srv.do(http.MethodDelete, "/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(http.MethodGet, "/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeThenPresetFlow(t *testing.T) {
	svc := &fakeService{analysis: "blue eyes, smiling"}
	srv := newTestServer(t, svc, 0)
	id := srv.createInCamera()
	srv.uploadPhoto(id)

	rec := srv.do(http.MethodPost, "/api/sessions/"+id+"/analyze", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "blue eyes, smiling", decodeSession(t, rec).AnalysisText)

	rec = srv.doJSON(http.MethodPost, "/api/sessions/"+id+"/transform", map[string]string{"scene_id": "medieval"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	b, ok := srv.store.Get(id)
	require.True(t, ok)
	b.Wait()

	rec = srv.do(http.MethodGet, "/api/sessions/"+id, "", nil)
	resp := decodeSession(t, rec)
	assert.Equal(t, models.StateResult, resp.State)
	assert.Equal(t, "/api/sessions/"+id+"/images/generated", resp.GeneratedImageURL)
	assert.NotEmpty(t, resp.OriginalImageURL)
	require.Len(t, svc.prompts, 1)
	assert.True(t, strings.HasSuffix(svc.prompts[0], "The person looks like: blue eyes, smiling"))

	rec = srv.do(http.MethodGet, resp.GeneratedImageURL+"?download=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, media.MIMETypePNG, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="chronobooth-result.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, generated.Data, rec.Body.Bytes())
}

func TestTransformAnswersProcessing(t *testing.T) {
	svc := &fakeService{release: make(chan struct{})}
	srv := newTestServer(t, svc, 0)
	id := srv.createInCamera()
	srv.uploadPhoto(id)

	rec := srv.doJSON(http.MethodPost, "/api/sessions/"+id+"/transform", map[string]string{"scene_id": "egypt"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, models.StateProcessing, resp.State)
	assert.True(t, resp.IsLoading)
	assert.Equal(t, "Transporting you to Ancient Egypt...", resp.LoadingMessage)

	rec = srv.do(http.MethodGet, "/api/sessions/"+id+"/images/generated", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodPost, "/api/sessions/"+id+"/analyze", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(svc.release)
	b, _ := srv.store.Get(id)
	b.Wait()
}

func TestCustomFailureAndRetry(t *testing.T) {
	svc := &fakeService{transformErr: fmt.Errorf("%w: upstream 500", providers.ErrTransformFailed)}
	srv := newTestServer(t, svc, 0)
	id := srv.createInCamera()
	srv.uploadPhoto(id)

	rec := srv.doJSON(http.MethodPut, "/api/sessions/"+id+"/prompt", map[string]string{"prompt": "zombie"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodPost, "/api/sessions/"+id+"/transform", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	b, _ := srv.store.Get(id)
	b.Wait()

	resp := decodeSession(t, srv.do(http.MethodGet, "/api/sessions/"+id, "", nil))
	assert.Equal(t, models.StateError, resp.State)
	assert.Contains(t, resp.LastError, "upstream 500")
	assert.Equal(t, []string{"Edit this image. zombie. Keep the person's identity."}, svc.prompts)

	rec = srv.do(http.MethodPost, "/api/sessions/"+id+"/retry", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeSession(t, rec)
	assert.Equal(t, models.StatePreview, resp.State)
	assert.NotEmpty(t, resp.OriginalImageURL)
}

func TestActionErrors(t *testing.T) {
	svc := &fakeService{analyzeErr: fmt.Errorf("%w: quota", providers.ErrAnalysisFailed)}
	srv := newTestServer(t, svc, 0)

	rec := srv.do(http.MethodPost, "/api/sessions", "", nil)
	id := decodeSession(t, rec).ID

	tests := []struct {
		name   string
		setup  func()
		method string
		path   string
		body   any
		want   int
	}{
		{name: "unknown session", method: http.MethodGet, path: "/api/sessions/nope", want: http.StatusNotFound},
		{name: "analyze from landing", method: http.MethodPost, path: "/api/sessions/" + id + "/analyze", want: http.StatusConflict},
		{name: "wrong method", method: http.MethodGet, path: "/api/sessions/" + id + "/reset", want: http.StatusMethodNotAllowed},
		{name: "unknown action", method: http.MethodPost, path: "/api/sessions/" + id + "/teleport", want: http.StatusNotFound},
		{
			name:   "analysis failure",
			setup:  func() { srv.do(http.MethodPost, "/api/sessions/"+id+"/enter", "", nil); srv.uploadPhoto(id) },
			method: http.MethodPost,
			path:   "/api/sessions/" + id + "/analyze",
			want:   http.StatusBadGateway,
		},
		{name: "transform without prompt", method: http.MethodPost, path: "/api/sessions/" + id + "/transform", body: map[string]string{}, want: http.StatusBadRequest},
		{name: "unknown scene", method: http.MethodPost, path: "/api/sessions/" + id + "/transform", body: map[string]string{"scene_id": "atlantis"}, want: http.StatusBadRequest},
		{name: "both scene and text", method: http.MethodPost, path: "/api/sessions/" + id + "/transform", body: map[string]string{"scene_id": "medieval", "custom_prompt": "zombie"}, want: http.StatusBadRequest},
		{name: "capture outside camera", method: http.MethodPost, path: "/api/sessions/" + id + "/capture", body: map[string]string{"image": "data:image/png;base64,AAAA"}, want: http.StatusConflict},
		{name: "unknown image", method: http.MethodGet, path: "/api/sessions/" + id + "/images/thumbnail", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rec := srv.doJSON(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	b, _ := srv.store.Get(id)
	assert.Equal(t, models.StatePreview, b.Snapshot().State)
}

func TestCaptureCameraFrameIsCroppedSquare(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, 0)
	id := srv.createInCamera()

	contentType, body := multipartBody(t, "camera", jpegFrame(t, 64, 48))
	rec := srv.do(http.MethodPost, "/api/sessions/"+id+"/capture", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatePreview, decodeSession(t, rec).State)

	rec = srv.do(http.MethodGet, "/api/sessions/"+id+"/images/original", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w, h, err := media.Dimensions(media.Image{Data: rec.Body.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, 48, w)
	assert.Equal(t, 48, h)
}

func TestCaptureUploadIsStoredUnmodified(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, 0)
	id := srv.createInCamera()

	frame := jpegFrame(t, 64, 48)
	contentType, body := multipartBody(t, "upload", frame)
	rec := srv.do(http.MethodPost, "/api/sessions/"+id+"/capture", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodGet, "/api/sessions/"+id+"/images/original", "", nil)
	assert.Equal(t, frame, rec.Body.Bytes())
	assert.Equal(t, media.MIMETypeJPEG, rec.Header().Get("Content-Type"))
}

func TestCaptureUnreadableCameraFrame(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, 0)
	id := srv.createInCamera()

	contentType, body := multipartBody(t, "camera", []byte("not a frame"))
	rec := srv.do(http.MethodPost, "/api/sessions/"+id+"/capture", contentType, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	b, _ := srv.store.Get(id)
	assert.Equal(t, models.StateCamera, b.Snapshot().State)
}

func TestCaptureRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, 1024)
	id := srv.createInCamera()

	rec := srv.doJSON(http.MethodPost, "/api/sessions/"+id+"/capture", map[string]string{"image": "", "source": "upload"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.doJSON(http.MethodPost, "/api/sessions/"+id+"/capture", map[string]string{"image": "data:image/png;base64,AAAA", "source": "scanner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	contentType, body := multipartBody(t, "upload", bytes.Repeat([]byte("x"), 4096))
	rec = srv.do(http.MethodPost, "/api/sessions/"+id+"/capture", contentType, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	b, _ := srv.store.Get(id)
	assert.Equal(t, models.StateCamera, b.Snapshot().State)
}
