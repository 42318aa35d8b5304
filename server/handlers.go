package server

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/rembg-web/blob"
	"github.com/chaos-io/rembg-web/workflow"
)

const noticeTooLarge = "The image is too large."

type pageData struct {
	Notices      []string
	Preview      template.URL
	ProcessedURL string
	Loading      bool
	CanDownload  bool
	MaxUploadMB  int64
}

func (s *Server) handleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	snap := s.ctrl.Snapshot(ctx)

	data := pageData{
		Notices: s.popNotices(c),
		// data URLs are produced by the controller from sniffed image bytes
		Preview:     template.URL(snap.PreviewDataURL),
		Loading:     snap.Loading(),
		CanDownload: snap.CanDownload(),
		MaxUploadMB: s.config.MaxUploadBytes >> 20,
	}
	if snap.Processed != nil {
		data.ProcessedURL = "/blob/" + snap.Processed.Ref.ID()
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		slog.ErrorContext(ctx, "failed to render page", "error", err)
		c.String(http.StatusInternalServerError, "Failed to render page")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.uploadHardLimit())

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.addNotice(c, noticeTooLarge)
		} else {
			s.addNotice(c, workflow.NoticeMissingInput)
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	f, err := fh.Open()
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to open uploaded file", "error", err)
		s.addNotice(c, workflow.NoticeUnexpected)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	defer func() {
		_ = f.Close()
	}()

	name := filepath.Base(fh.Filename)
	if err := s.ctrl.SelectImage(c.Request.Context(), name, fh.Header.Get("Content-Type"), f); err != nil {
		slog.InfoContext(c.Request.Context(), "image rejected", "name", name, "error", err)
		s.addNotice(c, workflow.Notice(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleRemove(c *gin.Context) {
	// the remote call runs to completion even if the browser goes away; the controller deadline bounds it
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.ctrl.RemoveBackground(ctx); err != nil {
		s.addNotice(c, workflow.Notice(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.ctrl.Reset(c.Request.Context()); err != nil {
		s.addNotice(c, workflow.Notice(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleDownload(c *gin.Context) {
	att, ok := s.ctrl.Download(c.Request.Context())
	if !ok {
		c.String(http.StatusNotFound, "Nothing to download")
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, att.ContentType, att.Data)
}

func (s *Server) handleBlob(c *gin.Context) {
	obj, ok := s.ctrl.Blob(blob.RefFromID(c.Param("id")))
	if !ok {
		c.String(http.StatusNotFound, "Not found")
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) addNotice(c *gin.Context, msg string) {
	// a cookie that fails to decode yields a fresh session, which is fine for flashes
	sess, _ := s.flash.Get(c.Request, flashSessionName)
	sess.AddFlash(msg)
	if err := sess.Save(c.Request, c.Writer); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to save notice", "error", err)
	}
}

func (s *Server) popNotices(c *gin.Context) []string {
	sess, _ := s.flash.Get(c.Request, flashSessionName)
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	if err := sess.Save(c.Request, c.Writer); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to clear notices", "error", err)
	}

	notices := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if msg, ok := f.(string); ok {
			notices = append(notices, msg)
		}
	}
	return notices
}
