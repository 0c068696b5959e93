package handler

import (
	"encoding/json"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/service"
)

const defaultMediaType = "application/octet-stream"

type upload struct {
	data      []byte
	filename  string
	mediaType string
}

// readUpload reads the multipart field "file". The optional form fields
// "filename" and "type" override the part's own filename and Content-Type.
func readUpload(c *fiber.Ctx) (*upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file")
	}

	up := &upload{data: data, filename: fh.Filename, mediaType: fh.Header.Get("Content-Type")}
	if v := strings.TrimSpace(c.FormValue("filename")); v != "" {
		up.filename = v
	}
	if v := strings.TrimSpace(c.FormValue("type")); v != "" {
		up.mediaType = v
	}
	if up.mediaType == "" {
		up.mediaType = defaultMediaType
	}
	return up, nil
}

// pathTarget validates the :bucket and :id route parameters.
func pathTarget(c *fiber.Ctx) (model.Bucket, string, error) {
	bucket, err := model.ParseBucket(c.Params("bucket"))
	if err != nil {
		return "", "", writeError(c, fiber.StatusBadRequest, "INVALID_BUCKET", err.Error())
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", "", writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	return bucket, id, nil
}

// IngestFile stores a new file (multipart/form-data, field name: file).
//
// @Summary  Ingest a file
// @Tags     files
// @Accept   mpfd
// @Produce  json
// @Param    file     formData file   true  "file to store"
// @Param    type     formData string false "declared media type"
// @Param    filename formData string false "filename override"
// @Success  201 {object} service.IngestResult
// @Failure  400,409,413,422 {object} errorPayload
// @Router   /files [post]
func IngestFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, err := readUpload(c)
		if up == nil {
			return err
		}

		res, err := svc.Ingest(c.UserContext(), service.IngestInput{
			Data:      up.data,
			Filename:  up.filename,
			MediaType: up.mediaType,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// UpdateFile replaces a stored file in place.
//
// @Summary  Replace a file
// @Tags     files
// @Accept   mpfd
// @Produce  json
// @Param    bucket path     string true "bucket"
// @Param    id     path     string true "blob id"
// @Param    file   formData file   true "replacement file"
// @Success  200 {object} service.UpdateResult
// @Failure  400,404,409,413,422,500 {object} errorPayload
// @Router   /files/{bucket}/{id} [put]
func UpdateFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket, id, err := pathTarget(c)
		if bucket == "" {
			return err
		}
		up, err := readUpload(c)
		if up == nil {
			return err
		}

		res, err := svc.Update(c.UserContext(), service.UpdateInput{
			BlobID:    id,
			Bucket:    bucket,
			Data:      up.data,
			Filename:  up.filename,
			MediaType: up.mediaType,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// DeleteFile removes a stored file and its content record.
//
// @Summary  Delete a file
// @Tags     files
// @Param    bucket path string true "bucket"
// @Param    id     path string true "blob id"
// @Success  204
// @Failure  400,404,500 {object} errorPayload
// @Router   /files/{bucket}/{id} [delete]
func DeleteFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket, id, err := pathTarget(c)
		if bucket == "" {
			return err
		}
		if err := svc.Delete(c.UserContext(), bucket, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type contentResponse struct {
	ID                string          `json:"id"`
	FileID            string          `json:"file_id"`
	Filename          string          `json:"filename"`
	Bucket            model.Bucket    `json:"bucket"`
	Content           string          `json:"content"`
	StructuredPayload json.RawMessage `json:"structured_payload,omitempty"`
	ViewsCount        int64           `json:"views_count"`
}

// FetchFile downloads the bytes, or with inline=true views the file: the
// content record for extractable buckets, the bytes otherwise.
//
// @Summary  Download or view a file
// @Tags     files
// @Produce  json,octet-stream
// @Param    bucket path  string true  "bucket"
// @Param    id     path  string true  "blob id"
// @Param    inline query bool   false "view instead of download"
// @Success  200
// @Failure  400,404,500 {object} errorPayload
// @Router   /files/{bucket}/{id} [get]
func FetchFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket, id, err := pathTarget(c)
		if bucket == "" {
			return err
		}
		inline := c.QueryBool("inline", false)

		res, err := svc.Fetch(c.UserContext(), bucket, id, inline)
		if err != nil {
			return writeServiceError(c, err)
		}

		if res.Content != nil {
			return c.JSON(contentResponse{
				ID:                res.Content.ID,
				FileID:            res.Content.FileID,
				Filename:          res.Content.Filename,
				Bucket:            bucket,
				Content:           res.Content.Content,
				StructuredPayload: res.Content.StructuredPayload,
				ViewsCount:        res.Blob.ViewsCount,
			})
		}

		disposition := "attachment"
		if inline {
			disposition = "inline"
		}
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType(disposition, map[string]string{"filename": res.Blob.Filename}))
		c.Set(fiber.HeaderContentType, res.Blob.MediaType)
		c.Set("X-Downloads-Count", strconv.FormatInt(res.Blob.DownloadsCount, 10))
		c.Set("X-Views-Count", strconv.FormatInt(res.Blob.ViewsCount, 10))
		return c.SendStream(res.Body, int(res.Blob.Size))
	}
}

// DownloadLink returns a presigned URL for the bytes. Handing out a link
// counts as a download.
//
// @Summary  Presigned download link
// @Tags     files
// @Produce  json
// @Param    bucket path  string true  "bucket"
// @Param    id     path  string true  "blob id"
// @Param    ttl    query int    false "expiry in seconds (default 900)"
// @Success  200 {object} service.DownloadLink
// @Failure  400,404 {object} errorPayload
// @Router   /files/{bucket}/{id}/link [get]
func DownloadLink(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bucket, id, err := pathTarget(c)
		if bucket == "" {
			return err
		}
		ttl := c.QueryInt("ttl", 0)
		if ttl < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TTL", "ttl must be a positive number of seconds")
		}

		link, err := svc.DownloadLink(c.UserContext(), bucket, id, time.Duration(ttl)*time.Second)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(link)
	}
}

type listResponse struct {
	Items []model.BlobSummary `json:"items"`
	Total int                 `json:"total"`
}

// ListFiles lists blob summaries, optionally of one bucket.
//
// @Summary  List files
// @Tags     files
// @Produce  json
// @Param    bucket query string false "bucket filter"
// @Param    sort   query string false "created (default) or filename"
// @Param    order  query string false "desc (default) or asc"
// @Success  200 {object} listResponse
// @Failure  400 {object} errorPayload
// @Router   /files [get]
func ListFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q service.ListQuery
		if s := c.Query("bucket"); s != "" {
			b, err := model.ParseBucket(s)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BUCKET", err.Error())
			}
			q.Bucket = &b
		}
		sortBy, err := model.ParseSortBy(c.Query("sort"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_SORT", err.Error())
		}
		order, err := model.ParseOrder(c.Query("order"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ORDER", err.Error())
		}
		q.SortBy, q.Order = sortBy, order

		items, err := svc.List(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(listResponse{Items: items, Total: len(items)})
	}
}

type searchResponse struct {
	Term string            `json:"term"`
	Hits []model.SearchHit `json:"hits"`
}

// SearchFiles finds content records containing q, case-insensitively.
//
// @Summary  Full-text search
// @Tags     files
// @Produce  json
// @Param    q query string true "search term"
// @Success  200 {object} searchResponse
// @Failure  400,404 {object} errorPayload
// @Router   /search [get]
func SearchFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		term := c.Query("q")
		if strings.TrimSpace(term) == "" {
			return writeError(c, fiber.StatusBadRequest, "QUERY_REQUIRED", "query parameter q is required")
		}

		hits, err := svc.Search(c.UserContext(), term)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(searchResponse{Term: term, Hits: hits})
	}
}

type integrityResponse struct {
	Consistent bool                     `json:"consistent"`
	Issues     []service.IntegrityIssue `json:"issues"`
}

// VerifyIntegrity scans every bucket for blobs and content records out of step.
//
// @Summary  Integrity report
// @Tags     ops
// @Produce  json
// @Success  200 {object} integrityResponse
// @Router   /integrity [get]
func VerifyIntegrity(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issues, err := svc.Verify(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(integrityResponse{Consistent: len(issues) == 0, Issues: issues})
	}
}
