// Package images implements the four request handlers of the service:
// upload, list, get and delete. Handlers receive a normalized Request,
// call the storage adapters, and return a normalized Response; they are
// independent of how requests are delivered.
package images

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"imagevault/internal/store"
)

// uploadDateFormat is a fixed-width ISO-8601 UTC timestamp. Fixed width
// keeps lexicographic order equal to chronological order, which the
// secondary indexes rely on.
const uploadDateFormat = "2006-01-02T15:04:05.000000Z07:00"

// Request is the normalized inbound request, independent of transport.
type Request struct {
	Body                  string
	PathParameters        map[string]string
	QueryStringParameters map[string]string
}

// Response is the normalized outbound response. Body is a JSON string.
type Response struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Service wires the handlers to their two storage adapters.
type Service struct {
	objects store.ObjectStore
	records store.RecordStore
}

func NewService(objects store.ObjectStore, records store.RecordStore) *Service {
	return &Service{objects: objects, records: records}
}

type uploadBody struct {
	Image       string   `json:"image"`
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ContentType string   `json:"content_type"`
}

// Upload validates the request, writes the decoded payload to the
// object store and then the metadata record to the record store. The
// two writes are not atomic: if the record write fails the payload is
// already durable and stays behind as an orphan. That state is logged
// rather than rolled back.
func (s *Service) Upload(ctx context.Context, req Request) (resp Response) {
	defer recoverResponse(&resp)

	var body uploadBody
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return internalError(err)
	}

	if body.Image == "" {
		return errorResponse(http.StatusBadRequest, "Image data is required")
	}
	if body.UserID == "" {
		return errorResponse(http.StatusBadRequest, "user_id is required")
	}

	imageID := uuid.NewString()

	data, err := base64.StdEncoding.DecodeString(body.Image)
	if err != nil {
		return errorResponse(http.StatusBadRequest, fmt.Sprintf("Invalid base64 image data: %v", err))
	}

	contentType := body.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := s.objects.Put(ctx, imageID, data, contentType); err != nil {
		slog.Error("Upload payload failed", "image_id", imageID, "err", err)
		return errorResponse(http.StatusInternalServerError, "Failed to upload image to S3")
	}

	rec := store.Record{
		ImageID:     imageID,
		UserID:      body.UserID,
		Title:       body.Title,
		Description: body.Description,
		Tags:        body.Tags,
		UploadDate:  time.Now().UTC().Format(uploadDateFormat),
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if len(rec.Tags) > 0 {
		rec.PrimaryTag = rec.Tags[0]
	}

	if err := s.records.Put(ctx, rec); err != nil {
		// The payload written above is now orphaned; there is no
		// compensating delete, only this trail.
		slog.Error("Metadata write failed, payload orphaned", "image_id", imageID, "err", err)
		return errorResponse(http.StatusInternalServerError, "Failed to save metadata")
	}

	return jsonResponse(http.StatusCreated, map[string]any{
		"message":  "Image uploaded successfully",
		"image_id": imageID,
		"metadata": rec,
	})
}

// List returns records matching an optional owner or tag filter. The
// owner filter wins when both are supplied. An empty result set is a
// normal 200 response.
func (s *Service) List(ctx context.Context, req Request) (resp Response) {
	defer recoverResponse(&resp)

	var filter store.Filter
	if uid := req.QueryStringParameters["user_id"]; uid != "" {
		filter.Owner = uid
	} else if tag := req.QueryStringParameters["tag"]; tag != "" {
		filter.Tag = tag
	}

	records, err := s.records.Query(ctx, filter)
	if err != nil {
		slog.Error("List query failed", "err", err)
		return errorResponse(http.StatusInternalServerError, "Failed to list images")
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"count":  len(records),
		"images": records,
	})
}

// Get returns metadata for one image, optionally with a presigned link
// (url=true) or the base64 payload itself (download=true). The url flag
// is checked first when both are set. The default path never touches
// the object store.
func (s *Service) Get(ctx context.Context, req Request) (resp Response) {
	defer recoverResponse(&resp)

	imageID := req.PathParameters["image_id"]
	if imageID == "" {
		return errorResponse(http.StatusBadRequest, "image_id is required")
	}

	rec, err := s.records.Get(ctx, imageID)
	if err != nil {
		if store.IsNotFound(err) {
			return errorResponse(http.StatusNotFound, "Image not found")
		}
		slog.Error("Metadata lookup failed", "image_id", imageID, "err", err)
		return internalError(err)
	}

	if boolParam(req.QueryStringParameters, "url") {
		signed, err := s.objects.SignURL(ctx, imageID, store.DefaultSignTTL)
		if err != nil {
			slog.Error("Presign failed", "image_id", imageID, "err", err)
			return errorResponse(http.StatusInternalServerError, "Failed to generate presigned URL")
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"image_id": imageID,
			"url":      signed,
			"metadata": rec,
		})
	}

	if boolParam(req.QueryStringParameters, "download") {
		data, err := s.objects.Get(ctx, imageID)
		if err != nil {
			if store.IsNotFound(err) {
				return errorResponse(http.StatusNotFound, "Image data not found")
			}
			slog.Error("Payload fetch failed", "image_id", imageID, "err", err)
			return internalError(err)
		}
		resp := jsonResponse(http.StatusOK, map[string]any{
			"image_id":     imageID,
			"image_data":   base64.StdEncoding.EncodeToString(data),
			"content_type": rec.ContentType,
			"metadata":     rec,
		})
		resp.Headers = map[string]string{"Content-Type": "application/json"}
		return resp
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"image_id": imageID,
		"metadata": rec,
	})
}

// Delete removes an image's payload and record. Existence is checked
// first; then both deletes are attempted regardless of each other's
// outcome, and a partial failure reports which half succeeded instead
// of retrying or rolling back.
func (s *Service) Delete(ctx context.Context, req Request) (resp Response) {
	defer recoverResponse(&resp)

	imageID := req.PathParameters["image_id"]
	if imageID == "" {
		return errorResponse(http.StatusBadRequest, "image_id is required")
	}

	if _, err := s.records.Get(ctx, imageID); err != nil {
		if store.IsNotFound(err) {
			return errorResponse(http.StatusNotFound, "Image not found")
		}
		slog.Error("Metadata lookup failed", "image_id", imageID, "err", err)
		return internalError(err)
	}

	objectErr := s.objects.Delete(ctx, imageID)
	if objectErr != nil {
		slog.Error("Payload delete failed", "image_id", imageID, "err", objectErr)
	}
	recordErr := s.records.Delete(ctx, imageID)
	if recordErr != nil {
		slog.Error("Metadata delete failed", "image_id", imageID, "err", recordErr)
	}

	if objectErr != nil || recordErr != nil {
		return jsonResponse(http.StatusInternalServerError, map[string]any{
			"error":            "Failed to delete image completely",
			"s3_deleted":       objectErr == nil,
			"metadata_deleted": recordErr == nil,
		})
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"message":  "Image deleted successfully",
		"image_id": imageID,
	})
}

// boolParam reports whether the query parameter named key is "true",
// case-insensitively.
func boolParam(params map[string]string, key string) bool {
	return strings.EqualFold(params[key], "true")
}

func jsonResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		// Marshal of map[string]any over plain values cannot fail; if it
		// somehow does, surface it like any other unexpected failure.
		return internalError(err)
	}
	return Response{StatusCode: status, Body: string(body)}
}

func errorResponse(status int, msg string) Response {
	return jsonResponse(status, map[string]any{"error": msg})
}

func internalError(err error) Response {
	return errorResponse(http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
}

// recoverResponse converts a panic in a handler into the generic 500
// response, keeping adapter failures and programming errors from
// escaping past the handler boundary.
func recoverResponse(resp *Response) {
	if r := recover(); r != nil {
		slog.Error("Handler panicked", "err", r)
		*resp = errorResponse(http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", r))
	}
}
