package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/infra/ffmpeg"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePipeline struct {
	frames int
	err    error

	called     bool
	gotReq     entity.ExtractionRequest
	gotSource  string
	sourceSeen []byte
}

func (f *fakePipeline) Run(_ context.Context, session *entity.Session, sourcePath string, req entity.ExtractionRequest) (*entity.PipelineResult, error) {
	f.called = true
	f.gotReq = req
	f.gotSource = sourcePath
	f.sourceSeen, _ = os.ReadFile(sourcePath)
	os.Remove(sourcePath)
	if f.err != nil {
		return nil, f.err
	}

	if err := os.MkdirAll(session.OutputDir, 0o755); err != nil {
		return nil, err
	}
	names := make([]string, f.frames)
	for i := range names {
		names[i] = fmt.Sprintf("frame_%05d.png", i+1)
		if err := os.WriteFile(filepath.Join(session.OutputDir, names[i]), []byte("png"), 0o644); err != nil {
			return nil, err
		}
	}
	return &entity.PipelineResult{
		SessionID:  session.ID,
		FrameCount: len(names),
		Frames:     names,
		Analysis:   []entity.FrameAnalysis{},
	}, nil
}

type testServer struct {
	router   http.Handler
	pipeline *fakePipeline
	cfg      Config
}

func newTestServer(t *testing.T, pipeline *fakePipeline, maxUpload int64) *testServer {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		UploadDir:      filepath.Join(root, "uploads"),
		FrameDir:       filepath.Join(root, "frames"),
		MaxUploadBytes: maxUpload,
	}
	h := NewHandler(pipeline, ffmpeg.NewZipCreator(), cfg, zap.NewNop())
	return &testServer{router: NewRouter(h, zap.NewNop()), pipeline: pipeline, cfg: cfg}
}

func multipartUpload(t *testing.T, contentType string, payload []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if payload != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="video"; filename="../clip.mp4"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUploadRunsPipelineAndReturnsFrameURLs(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{frames: 3}, 0)

	req := multipartUpload(t, "video/mp4", []byte("fake video"), map[string]string{
		"mode":         "fixed-rate",
		"rate":         "2",
		"startTime":    "1.5",
		"enableAI":     "on",
		"detectScenes": "true",
	})
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success     bool            `json:"success"`
		SessionID   string          `json:"session_id"`
		FrameCount  int             `json:"frame_count"`
		FrameURLs   []string        `json:"frame_urls"`
		DownloadURL string          `json:"download_url"`
		Result      json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.FrameCount)
	require.Len(t, body.FrameURLs, 3)
	assert.Equal(t, "/frames/"+body.SessionID+"/frame_00001.png", body.FrameURLs[0])
	assert.Equal(t, "/download-all/"+body.SessionID, body.DownloadURL)
	assert.NotContains(t, string(body.Result), "scenes")

	p := srv.pipeline
	assert.Equal(t, entity.ModeFixedRate, p.gotReq.Mode)
	assert.Equal(t, 2.0, p.gotReq.Rate)
	require.NotNil(t, p.gotReq.Start)
	assert.Equal(t, 1.5, *p.gotReq.Start)
	assert.Nil(t, p.gotReq.End)
	assert.True(t, p.gotReq.EnableAI)
	assert.True(t, p.gotReq.DetectScenes)
	assert.False(t, p.gotReq.RemoveBlurry)

	assert.Equal(t, []byte("fake video"), p.sourceSeen)
	assert.Equal(t, srv.cfg.UploadDir, filepath.Dir(p.gotSource))
	assert.Equal(t, body.SessionID+"_clip.mp4", filepath.Base(p.gotSource))
}

func TestUploadLegacyFrameRateField(t *testing.T) {
	cases := []struct {
		value string
		mode  entity.ExtractionMode
		rate  float64
	}{
		{"", entity.ModeAll, 0},
		{"all", entity.ModeAll, 0},
		{"5", entity.ModeFixedRate, 5},
	}
	for _, tc := range cases {
		t.Run("frameRate="+tc.value, func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{frames: 1}, 0)
			fields := map[string]string{}
			if tc.value != "" {
				fields["frameRate"] = tc.value
			}
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, multipartUpload(t, "video/webm", []byte("v"), fields))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.mode, srv.pipeline.gotReq.Mode)
			assert.Equal(t, tc.rate, srv.pipeline.gotReq.Rate)
		})
	}
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name        string
		maxUpload   int64
		contentType string
		payload     []byte
		fields      map[string]string
		wantMsg     string
	}{
		{"missing file", 0, "", nil, nil, "No video file uploaded"},
		{"too large", 10, "video/mp4", bytes.Repeat([]byte("x"), 100), nil, "File too large"},
		{"wrong type", 0, "image/png", []byte("x"), nil, "Invalid file type"},
		{"unknown mode", 0, "video/mp4", []byte("x"), map[string]string{"mode": "every-other"}, "unknown extraction mode"},
		{"bad rate", 0, "video/mp4", []byte("x"), map[string]string{"frameRate": "fast"}, "not a number"},
		{"end before start", 0, "video/mp4", []byte("x"), map[string]string{"startTime": "5", "endTime": "2"}, "before start"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{frames: 1}, tc.maxUpload)
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, multipartUpload(t, tc.contentType, tc.payload, tc.fields))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.False(t, body.Success)
			assert.Contains(t, body.Error, tc.wantMsg)
			assert.False(t, srv.pipeline.called)
		})
	}
}

func TestUploadMapsPipelineErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		wantMsg string
	}{
		{entity.ErrEmptyExtraction, http.StatusInternalServerError, "No frames could be extracted"},
		{&entity.ExtractionError{Output: "moov atom not found", Err: fmt.Errorf("exit status 1")}, http.StatusInternalServerError, "Error extracting frames"},
		{fmt.Errorf("probe: %w", entity.ErrProbeFailure), http.StatusInternalServerError, "metadata"},
		{fmt.Errorf("%w: boom", entity.ErrPipelineFailure), http.StatusInternalServerError, "unexpected error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{err: tc.err}, 0)
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, multipartUpload(t, "video/mp4", []byte("x"), nil))

			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Contains(t, body.Error, tc.wantMsg)
			assert.NotContains(t, body.Error, "moov atom")
		})
	}
}

func seedSession(t *testing.T, srv *testServer, files ...string) string {
	t.Helper()
	id := uuid.New().String()
	dir := filepath.Join(srv.cfg.FrameDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("data-"+f), 0o644))
	}
	return id
}

func TestServeFrame(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, 0)
	id := seedSession(t, srv, "frame_00001.png")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frames/"+id+"/frame_00001.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data-frame_00001.png", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frames/"+id+"/frame_00002.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frames/not-a-session/frame_00001.png", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frames/"+id+"/..", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadAllStreamsArchive(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, 0)
	id := seedSession(t, srv, "frame_00001.png", "frame_00002.png")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-all/"+id, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="frames_`+id+`.zip"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "frame_00001.png", zr.File[0].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "data-frame_00002.png", string(data))
}

func TestDownloadAllUnknownSession(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, 0)

	for _, id := range []string{uuid.New().String(), "../etc"} {
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-all/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}
}

func TestRouterServesHealthz(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, 0)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
