package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicevod/service/internal/admission"
	"github.com/nicevod/service/internal/keys"
	"github.com/nicevod/service/internal/middleware"
)

type part struct {
	filename    string
	contentType string
	data        string
}

func multipartRequest(t *testing.T, userID string, file *part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		require.NoError(t, mw.WriteField("user_id", userID))
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.filename+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(file.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withIdentity(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), admission.Identity{UserID: userID}))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func newTestHandler(t *testing.T, store *memStore, opts HandlerOptions) *Handler {
	t.Helper()
	svc := newTestService(t, keys.StrategyRandom, &fakeUsage{used: map[string]int64{"u1": 0}}, store, Options{})
	return NewHandler(svc, opts)
}

func TestHandler_Upload(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(t, store, HandlerOptions{AuthEnforced: true})

	req := withIdentity(multipartRequest(t, "u1", &part{"song.mp3", "audio/mpeg", "ID3"}), "u1")
	w := httptest.NewRecorder()
	h.Upload(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "u1", resp.UserID)
	assert.True(t, strings.HasSuffix(resp.Key, ".mp3"), resp.Key)
	assert.Equal(t, "https://cdn.example.com/"+resp.Key, resp.PublicURL)
	assert.Equal(t, "ID3", store.objects[resp.Key])
	assert.Equal(t, "audio/mpeg", store.types[resp.Key])
}

func TestHandler_UploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		userID   string
		file     *part
		status   int
		message  string
	}{
		{"no identity", "", "u1", &part{"a.png", "image/png", "x"}, http.StatusUnauthorized, "unauthenticated"},
		{"no file", "u1", "u1", nil, http.StatusBadRequest, "file and user id required"},
		{"no user id", "u1", "", &part{"a.png", "image/png", "x"}, http.StatusBadRequest, "file and user id required"},
		{"mismatch", "u1", "u2", &part{"a.png", "image/png", "x"}, http.StatusForbidden, "user mismatch"},
		{"no content type", "u1", "u1", &part{"a.png", "", "x"}, http.StatusUnsupportedMediaType, `file type "application/octet-stream" is not allowed`},
		{"too large", "u1", "u1", &part{"a.png", "image/png", strings.Repeat("x", testMaxFile+1)}, http.StatusRequestEntityTooLarge, "file exceeds the 600 byte limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			h := newTestHandler(t, store, HandlerOptions{AuthEnforced: true})

			req := multipartRequest(t, tt.userID, tt.file)
			if tt.identity != "" {
				req = withIdentity(req, tt.identity)
			}
			w := httptest.NewRecorder()
			h.Upload(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w))
			assert.Zero(t, store.count())
		})
	}
}

func TestHandler_UploadStripsMediaTypeParameters(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(t, store, HandlerOptions{AuthEnforced: true})

	req := withIdentity(multipartRequest(t, "u1", &part{"a.png", "Image/PNG; charset=binary", "x"}), "u1")
	w := httptest.NewRecorder()
	h.Upload(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandler_UploadWithoutAuthUsesDeclaredUser(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(t, store, HandlerOptions{AuthEnforced: false})

	w := httptest.NewRecorder()
	h.Upload(w, multipartRequest(t, "u1", &part{"a.png", "image/png", "x"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	h.Upload(w, multipartRequest(t, "", &part{"a.png", "image/png", "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_UploadBodyLimit(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(t, store, HandlerOptions{AuthEnforced: true, MaxRequestBytes: 1024})

	req := withIdentity(multipartRequest(t, "u1", &part{"a.png", "image/png", strings.Repeat("x", 4096)}), "u1")
	w := httptest.NewRecorder()
	h.Upload(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request body too large", decodeError(t, w))
	assert.Zero(t, store.count())
}

func TestHandler_UploadBodyLimitPrecedesAdmission(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(t, store, HandlerOptions{AuthEnforced: true, MaxRequestBytes: 1024})

	req := withIdentity(multipartRequest(t, "u2", &part{"a.zip", "application/zip", strings.Repeat("x", 4096)}), "u1")
	w := httptest.NewRecorder()
	h.Upload(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request body too large", decodeError(t, w))
	assert.Zero(t, store.count())

	// Within the limit the same request reaches admission and is refused there.
	req = withIdentity(multipartRequest(t, "u2", &part{"a.zip", "application/zip", "x"}), "u1")
	w = httptest.NewRecorder()
	h.Upload(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "user mismatch", decodeError(t, w))
}

func TestHandler_UploadNotMultipart(t *testing.T) {
	h := newTestHandler(t, newMemStore(), HandlerOptions{AuthEnforced: true})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"file":"x"}`)), "u1")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Ping(t *testing.T) {
	h := newTestHandler(t, newMemStore(), HandlerOptions{})

	w := httptest.NewRecorder()
	h.Ping(w, httptest.NewRequest(http.MethodGet, "/upload", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"via":"upload"}`, w.Body.String())
}

func TestHandler_Delete(t *testing.T) {
	store := newMemStore()
	store.objects["abc.png"] = "x"
	h := newTestHandler(t, store, HandlerOptions{})

	w := httptest.NewRecorder()
	h.Delete(w, httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(`{"key":"/abc.png"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, []string{"abc.png"}, store.deleted)

	w = httptest.NewRecorder()
	h.Delete(w, httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "key required", decodeError(t, w))

	w = httptest.NewRecorder()
	h.Delete(w, httptest.NewRequest(http.MethodPost, "/delete", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Usage(t *testing.T) {
	h := newTestHandler(t, newMemStore(), HandlerOptions{AuthEnforced: true})

	w := httptest.NewRecorder()
	h.Usage(w, withIdentity(httptest.NewRequest(http.MethodGet, "/usage", nil), "u1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"u1","bytesUsed":0,"limit":1000}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Usage(w, httptest.NewRequest(http.MethodGet, "/usage?user_id=u1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", mediaType(""))
	assert.Equal(t, "image/png", mediaType("image/png"))
	assert.Equal(t, "image/png", mediaType("IMAGE/PNG; q=1"))
	assert.Equal(t, "not a type;;", mediaType("Not A Type;;"))
}
