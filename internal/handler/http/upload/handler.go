// Package upload serves meal-photo uploads. Each upload is rate limited per
// user, then validated on its declared metadata and on its leading bytes
// before it reaches the image store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"food-diary/internal/handler/http/auth"
	"food-diary/internal/handler/http/respond"
	"food-diary/internal/observability/metrics"
	entryUC "food-diary/internal/usecase/entry"
	"food-diary/pkg/security/gate"
	secupload "food-diary/pkg/security/upload"
	"food-diary/pkg/security/validation"
)

const (
	// FormField is the multipart field carrying the image.
	FormField = "image"

	// KeyPrefix namespaces the per-user upload rate limit keys.
	KeyPrefix = "upload:"

	// multipartOverhead leaves room for boundaries and the entry_id field.
	multipartOverhead = 1 << 20

	// maxMemory is held in memory before the multipart parser spills to disk.
	maxMemory = 1 << 20
)

// Config holds per-user upload limits.
type Config struct {
	Limit            int
	Window           time.Duration
	SignatureTimeout time.Duration
}

// DefaultConfig allows 10 uploads per user per minute.
func DefaultConfig() Config {
	return Config{Limit: 10, Window: time.Minute, SignatureTimeout: 2 * time.Second}
}

// Handler handles POST /api/uploads.
type Handler struct {
	Limiter gate.Limiter
	Store   ImageStore
	Entries *entryUC.Service // optional; attaches the image when entry_id is sent
	Config  Config
	Logger  *slog.Logger
}

// Response is returned for an accepted upload.
type Response struct {
	Key     string `json:"key"`
	Format  string `json:"format"`
	Size    int64  `json:"size"`
	EntryID int64  `json:"entry_id,omitempty"`
}

// Register mounts the upload route behind authz.
func Register(mux *http.ServeMux, h *Handler, authz func(http.Handler) http.Handler) {
	mux.Handle("POST /api/uploads", authz(h))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserIDFrom(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, auth.ErrMissingToken)
		return
	}

	if !h.allow(w, r, user) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, secupload.MaxSizeBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.RecordUploadRejected("size")
			respond.SafeError(w, http.StatusRequestEntityTooLarge, errors.New("file too large"))
			return
		}
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid multipart body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile(FormField)
	if err != nil {
		respond.ValidationFailed(w, validation.Errors{{Field: FormField, Message: "image is required"}})
		return
	}
	defer func() { _ = file.Close() }()

	entryID, err := parseEntryID(r.FormValue("entry_id"))
	if err != nil {
		respond.ValidationFailed(w, validation.Errors{{Field: "entry_id", Message: "entry_id must be a positive integer"}})
		return
	}

	declared := hdr.Header.Get("Content-Type")
	res := secupload.ValidateMetadata(secupload.Descriptor{
		Name:         hdr.Filename,
		DeclaredType: declared,
		SizeBytes:    hdr.Size,
	})
	if !res.Valid {
		for _, e := range res.Errors {
			metrics.RecordUploadRejected(e.Field)
		}
		respond.ValidationFailed(w, res.Errors)
		return
	}

	format, err := h.sniff(r.Context(), file)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "upload: signature read failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if format == "" || !strings.EqualFold(format.MIMEType(), declared) {
		metrics.RecordUploadRejected("signature")
		respond.ValidationFailed(w, validation.Errors{{Field: "content", Message: "file content is not a supported image"}})
		return
	}

	key := fmt.Sprintf("entries/%s/%s.%s", user, uuid.NewString(), format)
	n, err := h.Store.Put(r.Context(), key, format.MIMEType(), file)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, fmt.Errorf("store image: %w", err))
		return
	}

	if entryID > 0 && h.Entries != nil {
		if err := h.Entries.AttachImage(r.Context(), user, entryID, key); err != nil {
			if errors.Is(err, entryUC.ErrEntryNotFound) {
				respond.SafeError(w, http.StatusNotFound, err)
				return
			}
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	metrics.RecordUploadAccepted(n)
	respond.JSON(w, http.StatusCreated, Response{Key: key, Format: string(format), Size: n, EntryID: entryID})
}

// allow applies the per-user limit. A limiter error rejects the upload.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, user string) bool {
	d, err := h.Limiter.Check(r.Context(), KeyPrefix+user, h.Config.Limit, h.Config.Window)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "upload: rate limit store failed, rejecting",
			slog.String("user_id", user),
			slog.Any("error", err))
		gate.WriteRejection(w, gate.Result{Reason: gate.ReasonRateLimited, Stage: gate.StageRejected})
		return false
	}
	gate.SetRateLimitHeaders(w, d)
	if !d.Allowed {
		h.Logger.WarnContext(r.Context(), "upload rate limited", slog.String("user_id", user))
		gate.WriteRejection(w, gate.Result{Reason: gate.ReasonRateLimited, Stage: gate.StageRejected, Decision: d})
		return false
	}
	return true
}

// sniff reads the signature prefix under a timeout and rewinds the file.
// An unrecognised prefix returns an empty format.
func (h *Handler) sniff(ctx context.Context, file multipart.File) (secupload.Format, error) {
	timeout := h.Config.SignatureTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().SignatureTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prefix, err := secupload.ReadPrefix(ctx, file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	format, _ := secupload.Sniff(prefix)
	return format, nil
}

func parseEntryID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid entry_id")
	}
	return id, nil
}
