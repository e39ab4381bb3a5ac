package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"polished/internal/config"
	"polished/internal/generation"
	"polished/internal/models"
	"polished/internal/repository"
	"polished/internal/service"
	"polished/internal/store"
	"polished/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires a Server against a fresh in-memory store and the
// given generator, with all API routes registered.
func newTestServer(t *testing.T, generator generation.Generator) *fiber.App {
	t.Helper()

	cfg := &config.Config{
		DBPath:          ":memory:",
		UploadDir:       t.TempDir(),
		MaxUploadSizeMB: 1,
	}
	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	imageRepo := repository.NewImageRepository(st)
	s := &Server{
		config:       cfg,
		store:        st,
		postRepo:     repository.NewPostRepository(st),
		imageRepo:    imageRepo,
		imageService: service.NewImageService(imageRepo, generator, cfg),
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return app
}

func multipartUpload(t *testing.T, content []byte, filename, postID string) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if postID != "" {
		require.NoError(t, writer.WriteField("post_id", postID))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func createTestPost(t *testing.T, app *fiber.App) models.Post {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader([]byte(`{"title":"Gallery"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var post models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	return post
}

func TestUploadImageEndpoint(t *testing.T) {
	app := newTestServer(t, nil)
	post := createTestPost(t, app)

	body, contentType := multipartUpload(t, testutil.TinyPNG(t, 4, 4), "photo.png", fmt.Sprint(post.ID))
	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var img models.Image
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&img))
	assert.Equal(t, models.ImageModeInitial, img.Mode)
	require.NotNil(t, img.PostID)
	assert.Equal(t, post.ID, *img.PostID)
}

func TestUploadImageEndpointRejections(t *testing.T) {
	app := newTestServer(t, nil)

	tests := []struct {
		name     string
		content  []byte
		filename string
		postID   string
	}{
		{name: "missing file", content: nil, filename: "", postID: ""},
		{name: "disallowed extension", content: testutil.TinyPNG(t, 2, 2), filename: "notes.txt", postID: ""},
		{name: "non-image bytes", content: []byte("plain text"), filename: "fake.png", postID: ""},
		{name: "bad post id", content: testutil.TinyPNG(t, 2, 2), filename: "photo.png", postID: "zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.content, tt.filename, tt.postID)
			req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGenerateImageEndpoint(t *testing.T) {
	stub := &testutil.GeneratorStub{ConfiguredFlag: true, Bytes: testutil.TinyPNG(t, 8, 8)}
	app := newTestServer(t, stub)
	post := createTestPost(t, app)

	payload := fmt.Sprintf(`{"prompt":"a calm harbor","post_id":%d}`, post.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/images/generate", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var img models.Image
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&img))
	assert.Equal(t, models.ImageModeInitial, img.Mode)
	require.NotNil(t, img.Prompt)
	assert.Equal(t, "a calm harbor", *img.Prompt)
}

func TestGenerateImageEndpointErrors(t *testing.T) {
	tests := []struct {
		name           string
		generator      generation.Generator
		payload        string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "missing prompt",
			generator:      &testutil.GeneratorStub{ConfiguredFlag: true},
			payload:        `{"mode":"blend"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "unconfigured",
			generator:      &testutil.GeneratorStub{ConfiguredFlag: false},
			payload:        `{"prompt":"anything"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   models.CodeUnconfigured,
		},
		{
			name:           "missing parent",
			generator:      &testutil.GeneratorStub{ConfiguredFlag: true},
			payload:        `{"prompt":"anything","mode":"iterate","image_id":999}`,
			expectedStatus: http.StatusNotFound,
			expectedCode:   models.CodeNotFound,
		},
		{
			name:           "collaborator failure",
			generator:      &testutil.GeneratorStub{ConfiguredFlag: true, Err: errors.New("upstream exploded")},
			payload:        `{"prompt":"anything"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   models.CodeCollaborator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestServer(t, tt.generator)

			req := httptest.NewRequest(http.MethodPost, "/api/images/generate", bytes.NewReader([]byte(tt.payload)))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var errResp models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tt.expectedCode, errResp.Code)
		})
	}
}

// TestPublishingFlow drives a post through its whole life: draft, image
// upload, a derived generation, publication, and cascade delete.
func TestPublishingFlow(t *testing.T) {
	stub := &testutil.GeneratorStub{ConfiguredFlag: true, Bytes: testutil.TinyPNG(t, 8, 8)}
	app := newTestServer(t, stub)
	post := createTestPost(t, app)

	// Upload the starting image.
	body, contentType := multipartUpload(t, testutil.TinyPNG(t, 4, 4), "start.png", fmt.Sprint(post.ID))
	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var uploaded models.Image
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	_ = resp.Body.Close()

	// Derive a blend from it.
	payload := fmt.Sprintf(`{"prompt":"blend with fog","mode":"blend","post_id":%d,"image_id":%d}`, post.ID, uploaded.ID)
	req = httptest.NewRequest(http.MethodPost, "/api/images/generate", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var derived models.Image
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&derived))
	_ = resp.Body.Close()
	require.NotNil(t, derived.ParentImageID)
	assert.Equal(t, uploaded.ID, *derived.ParentImageID)
	assert.Equal(t, models.ImageModeBlend, derived.Mode)

	// Both images list oldest first.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/images/%d", post.ID), nil))
	require.NoError(t, err)
	var images []models.Image
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&images))
	_ = resp.Body.Close()
	require.Len(t, images, 2)
	assert.Equal(t, uploaded.ID, images[0].ID)
	assert.Equal(t, derived.ID, images[1].ID)

	// Publish and confirm it shows up in the published feed.
	req = httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID),
		bytes.NewReader([]byte(`{"status":"published"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.NoError(t, err)
	var published []models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&published))
	_ = resp.Body.Close()
	require.Len(t, published, 1)
	assert.Equal(t, post.ID, published[0].ID)

	// Deleting the post takes its images with it.
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/images/%d", post.ID), nil))
	require.NoError(t, err)
	var remaining []models.Image
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&remaining))
	_ = resp.Body.Close()
	assert.Empty(t, remaining)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
