// Package workflow drives the upload → remove background → display → download
// sequence for a single page and keeps its state in an injected SessionStore.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"sync"
	"time"

	"github.com/chaos-io/rembg-web/blob"
	"github.com/chaos-io/rembg-web/dataurl"
	"github.com/chaos-io/rembg-web/metrics"
	"github.com/chaos-io/rembg-web/rembg"
	"github.com/chaos-io/rembg-web/store"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultDownloadName = "background_removed.png"
)

// Controller allows at most one removal in flight. Safe for concurrent use.
type Controller struct {
	remover      rembg.Remover
	sessions     store.SessionStore
	blobs        *blob.Registry
	logger       *slog.Logger
	timeout      time.Duration
	downloadName string

	mu        sync.Mutex
	state     State
	uploaded  *UploadedImage
	processed *ProcessedImage
	// selection counts started reads; applied is the newest one that took effect
	selection uint64
	applied   uint64
	inflight  bool
}

type Option func(*Controller)

// WithTimeout bounds each remote call; 0 disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithDownloadName(name string) Option {
	return func(c *Controller) {
		c.downloadName = name
	}
}

func New(remover rembg.Remover, sessions store.SessionStore, blobs *blob.Registry, opts ...Option) *Controller {
	c := &Controller{
		remover:      remover,
		sessions:     sessions,
		blobs:        blobs,
		logger:       slog.Default(),
		timeout:      DefaultTimeout,
		downloadName: DefaultDownloadName,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectImage reads r as the new uploaded image and persists its data URL.
// When valid selections overlap, the one started last wins. A rejected
// selection does not displace an earlier one still being read.
func (c *Controller) SelectImage(ctx context.Context, name, contentType string, r io.Reader) error {
	c.mu.Lock()
	c.selection++
	seq := c.selection
	c.mu.Unlock()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	detected, err := dataurl.DetectImage(data)
	if err != nil {
		return err
	}
	if contentType != detected {
		c.logger.DebugContext(ctx, "declared content type differs from detected", "declared", contentType, "detected", detected)
	}

	img := &UploadedImage{
		Name:        name,
		ContentType: detected,
		Data:        data,
		DataURL:     dataurl.Encode(detected, data),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq <= c.applied {
		c.logger.DebugContext(ctx, "discarding superseded image selection", "name", name)
		return nil
	}

	c.applied = seq
	c.uploaded = img
	if c.state == StateFailed {
		c.setStateLocked(ctx, StateIdle)
	}
	c.persistLocked(ctx, store.KeyUploadedImage, img.DataURL)
	c.logger.InfoContext(ctx, "image selected", "name", name, "content_type", detected, "bytes", len(data))
	return nil
}

// RemoveBackground sends the selected image to the remote service once.
// The loading state is always cleared before it returns.
func (c *Controller) RemoveBackground(ctx context.Context) error {
	c.mu.Lock()
	if c.uploaded == nil {
		c.mu.Unlock()
		metrics.RejectedRequestsTotal.WithLabelValues("missing_input").Inc()
		c.logger.InfoContext(ctx, "background removal requested without an image")
		return ErrMissingInput
	}
	if c.inflight {
		c.mu.Unlock()
		metrics.RejectedRequestsTotal.WithLabelValues("busy").Inc()
		c.logger.InfoContext(ctx, "background removal already in flight")
		return ErrBusy
	}
	c.inflight = true
	c.setStateLocked(ctx, StateUploading)
	in := &rembg.Image{
		Name:        c.uploaded.Name,
		ContentType: c.uploaded.ContentType,
		Data:        c.uploaded.Data,
	}
	c.mu.Unlock()

	metrics.RemoveRequestsInFlight.Inc()
	start := time.Now()
	defer func() {
		metrics.RemoveRequestsInFlight.Dec()
		metrics.RemoveRequestDuration.Observe(time.Since(start).Seconds())

		c.mu.Lock()
		c.inflight = false
		if c.state == StateUploading {
			c.setStateLocked(ctx, StateFailed)
		}
		c.mu.Unlock()
	}()

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.remover.Remove(callCtx, in)
	if err != nil {
		remoteErr := classify(err)
		metrics.RemoveRequestsTotal.WithLabelValues(string(remoteErr.Kind)).Inc()
		c.logger.ErrorContext(ctx, "background removal failed",
			"kind", remoteErr.Kind,
			"status", remoteErr.StatusCode,
			"elapsed", time.Since(start),
			"error", err)

		c.mu.Lock()
		c.releaseProcessedLocked(ctx)
		c.setStateLocked(ctx, StateFailed)
		c.mu.Unlock()
		return remoteErr
	}

	metrics.RemoveRequestsTotal.WithLabelValues("success").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseProcessedLocked(ctx)
	c.processed = &ProcessedImage{
		Ref:         c.blobs.Create(out.ContentType, out.Data),
		ContentType: out.ContentType,
		Size:        len(out.Data),
	}
	c.persistLocked(ctx, store.KeyProcessedImage, dataurl.Encode(out.ContentType, out.Data))
	c.setStateLocked(ctx, StateDone)
	c.logger.InfoContext(ctx, "background removed",
		"ref", c.processed.Ref,
		"bytes", len(out.Data),
		"elapsed", time.Since(start))
	return nil
}

// Download returns the processed image to save, or false when there is none.
func (c *Controller) Download(ctx context.Context) (*Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.processedObjectLocked(ctx)
	if !ok {
		return nil, false
	}
	return &Attachment{
		Filename:    c.downloadName,
		ContentType: obj.ContentType,
		Data:        obj.Data,
	}, true
}

// RestoreSession repopulates state from the session store without any network call.
func (c *Controller) RestoreSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight {
		return ErrBusy
	}

	uploadedURL, err := c.lookupLocked(ctx, store.KeyUploadedImage)
	if err != nil {
		return err
	}
	if uploadedURL != "" {
		ct, data, err := dataurl.Decode(uploadedURL)
		if err != nil {
			c.discardLocked(ctx, store.KeyUploadedImage, err)
		} else {
			c.uploaded = &UploadedImage{
				Name:        restoredName(ct),
				ContentType: ct,
				Data:        data,
				DataURL:     uploadedURL,
			}
		}
	}

	processedURL, err := c.lookupLocked(ctx, store.KeyProcessedImage)
	if err != nil {
		return err
	}
	if processedURL != "" {
		if _, ok := c.adoptProcessedLocked(ctx, processedURL); ok {
			c.setStateLocked(ctx, StateDone)
		}
	}

	c.logger.InfoContext(ctx, "session restored",
		"uploaded", c.uploaded != nil,
		"processed", c.processed != nil)
	return nil
}

// Reset forgets both images and clears the session store.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight {
		return ErrBusy
	}

	c.applied = c.selection
	c.uploaded = nil
	c.releaseProcessedLocked(ctx)
	if err := c.sessions.Clear(ctx, store.KeyUploadedImage, store.KeyProcessedImage); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.setStateLocked(ctx, StateIdle)
	return nil
}

// Snapshot returns the current view state and keeps the processed reference alive.
func (c *Controller) Snapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state}
	if c.uploaded != nil {
		snap.FileName = c.uploaded.Name
		snap.PreviewDataURL = c.uploaded.DataURL
	}
	if _, ok := c.processedObjectLocked(ctx); ok {
		p := *c.processed
		snap.Processed = &p
	}
	return snap
}

// Blob resolves a transient reference created by this controller's registry.
func (c *Controller) Blob(ref blob.Ref) (blob.Object, bool) {
	return c.blobs.Get(ref)
}

// processedObjectLocked resolves the current processed reference, recreating it
// from the session store when the registry has already released it.
func (c *Controller) processedObjectLocked(ctx context.Context) (blob.Object, bool) {
	if c.processed == nil {
		return blob.Object{}, false
	}
	if obj, ok := c.blobs.Get(c.processed.Ref); ok {
		return obj, true
	}

	c.logger.DebugContext(ctx, "processed reference released, restoring from session", "ref", c.processed.Ref)
	c.processed = nil
	v, err := c.lookupLocked(ctx, store.KeyProcessedImage)
	if err != nil || v == "" {
		if c.state == StateDone {
			c.setStateLocked(ctx, StateIdle)
		}
		return blob.Object{}, false
	}
	return c.adoptProcessedLocked(ctx, v)
}

// adoptProcessedLocked replaces the processed image with the stored one under a fresh ref.
func (c *Controller) adoptProcessedLocked(ctx context.Context, processedURL string) (blob.Object, bool) {
	if c.processed != nil {
		c.blobs.Revoke(c.processed.Ref)
		c.processed = nil
	}
	ct, data, err := dataurl.Decode(processedURL)
	if err != nil {
		c.discardLocked(ctx, store.KeyProcessedImage, err)
		return blob.Object{}, false
	}
	ref := c.blobs.Create(ct, data)
	c.processed = &ProcessedImage{Ref: ref, ContentType: ct, Size: len(data)}
	obj, ok := c.blobs.Get(ref)
	return obj, ok
}

func (c *Controller) releaseProcessedLocked(ctx context.Context) {
	if c.processed == nil {
		return
	}
	c.blobs.Revoke(c.processed.Ref)
	c.logger.DebugContext(ctx, "released processed image", "ref", c.processed.Ref)
	c.processed = nil
	if err := c.sessions.Clear(ctx, store.KeyProcessedImage); err != nil {
		c.logger.WarnContext(ctx, "failed to clear session entry", "key", store.KeyProcessedImage, "error", err)
	}
}

// lookupLocked returns "" for missing keys.
func (c *Controller) lookupLocked(ctx context.Context, key string) (string, error) {
	v, err := c.sessions.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session %s: %w", key, err)
	}
	return v, nil
}

func (c *Controller) discardLocked(ctx context.Context, key string, cause error) {
	c.logger.WarnContext(ctx, "discarding corrupt session entry", "key", key, "error", cause)
	if err := c.sessions.Clear(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "failed to clear session entry", "key", key, "error", err)
	}
}

// persistLocked is best effort: a full or unavailable store only costs the resume.
func (c *Controller) persistLocked(ctx context.Context, key, value string) {
	if err := c.sessions.Set(ctx, key, value); err != nil {
		c.logger.WarnContext(ctx, "failed to persist session entry", "key", key, "error", err)
	}
}

func (c *Controller) setStateLocked(ctx context.Context, s State) {
	if c.state == s {
		return
	}
	c.logger.DebugContext(ctx, "state transition", "from", c.state, "to", s)
	c.state = s
}

func restoredName(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return "image"
	}
	return "image" + exts[0]
}
