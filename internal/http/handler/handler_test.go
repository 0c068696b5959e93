package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/blobstore"
	"docvault/internal/extract"
	"docvault/internal/model"
	"docvault/internal/service"
	serviceMocks "docvault/internal/service/mocks"
)

func multipartBody(t *testing.T, filename, partType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if partType != "" {
		h.Set("Content-Type", partType)
	}
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Post("/files", IngestFile(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "a.csv", "text/csv", []byte("a,1"), nil)
		recID := "rec-1"
		mockSvc.On("Ingest", mock.Anything, service.IngestInput{Data: []byte("a,1"), Filename: "a.csv", MediaType: "text/csv"}).
			Return(&service.IngestResult{BlobID: "blob-1", Bucket: model.BucketCSV, ContentRecordID: &recID}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var result service.IngestResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "blob-1", result.BlobID)
		assert.Equal(t, model.BucketCSV, result.Bucket)
		mockSvc.AssertExpectations(t)
	})

	t.Run("form fields override part headers", func(t *testing.T) {
		body, ct := multipartBody(t, "upload.bin", "", []byte("{}"), map[string]string{"type": "application/json", "filename": "cfg.json"})
		mockSvc.On("Ingest", mock.Anything, service.IngestInput{Data: []byte("{}"), Filename: "cfg.json", MediaType: "application/json"}).
			Return(&service.IngestResult{BlobID: "blob-2", Bucket: model.BucketJSON}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/files", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bucket mismatch", &service.BucketMismatchError{Expected: model.BucketText, Got: model.BucketJSON}, 409, "BUCKET_MISMATCH"},
		{"duplicate", &service.DuplicateFilenameError{Bucket: model.BucketText, Filename: "a"}, 409, "DUPLICATE_FILENAME"},
		{"too large", &service.PayloadTooLargeError{Size: 10, Limit: 5}, 413, "PAYLOAD_TOO_LARGE"},
		{"malformed", &extract.ExtractionError{Bucket: model.BucketJSON, Cause: &extract.MalformedPayloadError{Cause: errors.New("eof")}}, 422, "MALFORMED_PAYLOAD"},
		{"encoding", &extract.ExtractionError{Bucket: model.BucketText, Cause: &extract.EncodingError{Encoding: "utf-8"}}, 422, "ENCODING_ERROR"},
		{"extraction", &extract.ExtractionError{Bucket: model.BucketPDF, Cause: errors.New("bad xref")}, 422, "EXTRACTION_FAILED"},
		{"type not allowed", service.ErrTypeNotAllowed, 400, "TYPE_NOT_ALLOWED"},
		{"invalid input", service.ErrInvalidInput, 400, "BAD_REQUEST"},
		{"not found", &service.NotFoundError{Bucket: model.BucketPDF, BlobID: "x"}, 404, "NOT_FOUND"},
		{"content not found", &service.ContentNotFoundError{Bucket: model.BucketPDF, BlobID: "x"}, 404, "CONTENT_NOT_FOUND"},
		{"no match", &service.NoMatchError{Term: "z"}, 404, "NO_MATCH"},
		{"inconsistent", &service.InconsistentStateError{Detail: "content record missing"}, 500, "INCONSISTENT_STATE"},
		{"rollback", &blobstore.RollbackError{Op: "db save", Cause: errors.New("a"), RollbackErr: errors.New("b")}, 500, "INCONSISTENT_STATE"},
		{"internal", errors.New("boom"), 500, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return writeServiceError(c, tt.err) })

			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.status == 500 {
				assert.NotContains(t, body.Error.Message, "boom")
			}
		})
	}
}

func TestUpdateFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Put("/files/:bucket/:id", UpdateFile(mockSvc))
	id := uuid.NewString()

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "a.txt", "text/plain", []byte("v2"), nil)
		recID := "rec-1"
		mockSvc.On("Update", mock.Anything, service.UpdateInput{BlobID: id, Bucket: model.BucketText, Data: []byte("v2"), Filename: "a.txt", MediaType: "text/plain"}).
			Return(&service.UpdateResult{BlobID: id, ContentRecordID: &recID}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/files/text/"+id, body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("bucket mismatch", func(t *testing.T) {
		body, ct := multipartBody(t, "a.json", "application/json", []byte("{}"), nil)
		mockSvc.On("Update", mock.Anything, mock.Anything).
			Return(nil, &service.BucketMismatchError{Expected: model.BucketText, Got: model.BucketJSON}).Once()

		req := httptest.NewRequest(http.MethodPut, "/files/text/"+id, body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "BUCKET_MISMATCH", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid bucket", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPut, "/files/zip/"+id, nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BUCKET", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPut, "/files/text/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestDeleteFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Delete("/files/:bucket/:id", DeleteFile(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, model.BucketPDF, id).Return(nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/pdf/"+id, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, model.BucketPDF, id).Return(&service.NotFoundError{Bucket: model.BucketPDF, BlobID: id}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/pdf/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("inconsistent", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, model.BucketPDF, id).Return(&service.InconsistentStateError{Bucket: model.BucketPDF, BlobID: id, Detail: "content record missing"}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/pdf/"+id, nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INCONSISTENT_STATE", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestFetchFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/files/:bucket/:id", FetchFile(mockSvc))

	t.Run("download streams bytes", func(t *testing.T) {
		id := uuid.NewString()
		blob := &model.Blob{ID: id, Bucket: model.BucketImage, Filename: "cat.png", MediaType: "image/png", Size: 3, DownloadsCount: 1}
		mockSvc.On("Fetch", mock.Anything, model.BucketImage, id, false).
			Return(&service.FetchResult{Blob: blob, Body: io.NopCloser(bytes.NewReader([]byte{1, 2, 3}))}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/image/"+id, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename=cat.png`, resp.Header.Get("Content-Disposition"))
		assert.Equal(t, "1", resp.Header.Get("X-Downloads-Count"))

		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, []byte{1, 2, 3}, data)
		mockSvc.AssertExpectations(t)
	})

	t.Run("inline view returns content record", func(t *testing.T) {
		id := uuid.NewString()
		blob := &model.Blob{ID: id, Bucket: model.BucketJSON, ViewsCount: 4}
		rec := &model.ContentRecord{ID: "rec-1", FileID: id, Filename: "a.json", Content: `{"k":"v"}`, StructuredPayload: json.RawMessage(`{"k":"v"}`)}
		mockSvc.On("Fetch", mock.Anything, model.BucketJSON, id, true).
			Return(&service.FetchResult{Blob: blob, Content: rec}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/json/"+id+"?inline=true", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got contentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, id, got.FileID)
		assert.Equal(t, int64(4), got.ViewsCount)
		assert.JSONEq(t, `{"k":"v"}`, string(got.StructuredPayload))
		mockSvc.AssertExpectations(t)
	})

	t.Run("content not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Fetch", mock.Anything, model.BucketText, id, true).
			Return(nil, &service.ContentNotFoundError{Bucket: model.BucketText, BlobID: id}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/text/"+id+"?inline=true", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "CONTENT_NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDownloadLink(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/files/:bucket/:id/link", DownloadLink(mockSvc))

	t.Run("returns presigned url", func(t *testing.T) {
		id := uuid.NewString()
		link := &service.DownloadLink{URL: "https://objects.example/pdf/" + id + "?X-Amz-Signature=abc"}
		mockSvc.On("DownloadLink", mock.Anything, model.BucketPDF, id, 10*time.Minute).Return(link, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/pdf/"+id+"/link?ttl=600", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got service.DownloadLink
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, link.URL, got.URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("negative ttl", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/pdf/"+uuid.NewString()+"/link?ttl=-5", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_TTL", decodeError(t, resp).Error.Code)
	})

	t.Run("unknown blob", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("DownloadLink", mock.Anything, model.BucketCSV, id, time.Duration(0)).
			Return(nil, &service.NotFoundError{Bucket: model.BucketCSV, BlobID: id}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/csv/"+id+"/link", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestListFiles(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/files", ListFiles(mockSvc))

	t.Run("success", func(t *testing.T) {
		csv := model.BucketCSV
		items := []model.BlobSummary{{ID: "1", Filename: "a.csv", Bucket: csv}}
		mockSvc.On("List", mock.Anything, service.ListQuery{Bucket: &csv, SortBy: model.SortByFilename, Order: model.OrderAsc}).
			Return(items, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files?bucket=csv&sort=filename&order=asc", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result listResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("defaults", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, service.ListQuery{SortBy: model.SortByCreated, Order: model.OrderDesc}).
			Return([]model.BlobSummary{}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		for query, code := range map[string]string{
			"bucket=zip": "INVALID_BUCKET",
			"sort=size":  "INVALID_SORT",
			"order=up":   "INVALID_ORDER",
		} {
			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
			assert.Equal(t, code, decodeError(t, resp).Error.Code, query)
		}
	})
}

func TestSearchFiles(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/search", SearchFiles(mockSvc))

	t.Run("hits", func(t *testing.T) {
		hits := []model.SearchHit{{Filename: "a.csv", BlobID: "1", Bucket: model.BucketCSV}}
		mockSvc.On("Search", mock.Anything, "a").Return(hits, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/search?q=a", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result searchResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, hits, result.Hits)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no match", func(t *testing.T) {
		mockSvc.On("Search", mock.Anything, "z").Return(nil, &service.NoMatchError{Term: "z"}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/search?q=z", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NO_MATCH", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing query", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/search", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "QUERY_REQUIRED", decodeError(t, resp).Error.Code)
	})
}

func TestVerifyIntegrity(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := fiber.New()
	app.Get("/integrity", VerifyIntegrity(mockSvc))

	issues := []service.IntegrityIssue{{Bucket: model.BucketText, BlobID: "1", Problem: service.ProblemMissingRecord}}
	mockSvc.On("Verify", mock.Anything).Return(issues, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/integrity", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result integrityResponse
	json.NewDecoder(resp.Body).Decode(&result)
	assert.False(t, result.Consistent)
	assert.Equal(t, issues, result.Issues)
	mockSvc.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockFileService)
	RegisterRoutes(app, nil, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("health without database", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
