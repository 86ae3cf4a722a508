package s3api

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailchannels/objectmail/internal/mailstore"
	"github.com/mailchannels/objectmail/internal/metadata"
	"github.com/mailchannels/objectmail/internal/pipeline"
)

func decodeXML(b []byte, v interface{}) error {
	return xml.Unmarshal(b, v)
}

type testLogger struct{ *logrus.Logger }

func (l testLogger) WithRequestID(r *http.Request) *logrus.Entry { return l.Logger.WithField("rid", "-") }
func (l testLogger) Reopen() error                               { return nil }
func (l testLogger) GetLogDest() string                          { return "test" }
func (l testLogger) SetLevel(level string)                       {}
func (l testLogger) GetLevel() string                            { return "info" }

func newTestServer(t *testing.T) *Server {
	meta := metadata.NewMemStore()
	mail := mailstore.NewMemStore()
	pipe, err := pipeline.New(meta, mail, pipeline.Config{ChunkSizeBytes: 1024 * 1024})
	require.NoError(t, err)

	base := logrus.New()
	base.SetOutput(bytes.NewBuffer(nil))
	return New(pipe, testLogger{base})
}

func TestPutGetObjectRoundTrip(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/photos", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := []byte("hello from objectmail")
	req = httptest.NewRequest(http.MethodPut, "/photos/cat.txt", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	assert.NotEmpty(t, etag)

	req = httptest.NewRequest(http.MethodGet, "/photos/cat.txt", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.Bytes())
}

func TestGetObjectMissingKeyReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPut, "/b", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/b/missing.txt", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NoSuchKey")
}

func TestCreateBucketTwiceConflicts(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPut, "/dup", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/dup", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListObjectsV2(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPut, "/list-b", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, key := range []string{"a.txt", "b.txt"} {
		req = httptest.NewRequest(http.MethodPut, "/list-b/"+key, bytes.NewReader([]byte(key)))
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/list-b?list-type=2", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a.txt")
	assert.Contains(t, rec.Body.String(), "b.txt")
}

func TestMultipartUploadRoundTrip(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPut, "/mp", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/mp/big?uploads", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var init initiateMultipartUploadResult
	require.NoError(t, decodeXML(rec.Body.Bytes(), &init))
	require.NotEmpty(t, init.UploadId)

	partA := bytes.Repeat([]byte("A"), 1024)
	req = httptest.NewRequest(http.MethodPut, "/mp/big?partNumber=1&uploadId="+init.UploadId, bytes.NewReader(partA))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	partETag := rec.Header().Get("ETag")
	require.NotEmpty(t, partETag)

	completeBody := []byte(`<CompleteMultipartUpload><Part><PartNumber>1</PartNumber><ETag>` + partETag + `</ETag></Part></CompleteMultipartUpload>`)
	req = httptest.NewRequest(http.MethodPost, "/mp/big?uploadId="+init.UploadId, bytes.NewReader(completeBody))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/mp/big", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, partA, rec.Body.Bytes())
}
