package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chaos-io/rembg-web/dataurl"
	"github.com/chaos-io/rembg-web/rembg"
	nhttp "github.com/chaos-io/rembg-web/util/http"
)

var (
	// ErrMissingInput is returned by RemoveBackground when no image has been selected.
	ErrMissingInput = errors.New("no image selected")
	// ErrBusy is returned by RemoveBackground while another removal is in flight.
	ErrBusy = errors.New("background removal already in progress")
	// ErrNotImage is returned by SelectImage for non-image files.
	ErrNotImage = dataurl.ErrNotImage
	// ErrTimeout matches a RemoteRequestError of KindTimeout.
	ErrTimeout = errors.New("background removal timed out")
)

// Kind classifies remote failures for diagnostics. All kinds surface the same notice.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindClient    Kind = "client"
	KindServer    Kind = "server"
	KindTransport Kind = "transport"
	KindMalformed Kind = "malformed"
)

// RemoteRequestError wraps any failure of the call to the background removal service.
type RemoteRequestError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote request failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote request failed (%s): %v", e.Kind, e.Err)
}

func (e *RemoteRequestError) Unwrap() error {
	return e.Err
}

func (e *RemoteRequestError) Is(target error) bool {
	return target == ErrTimeout && e.Kind == KindTimeout
}

func classify(err error) *RemoteRequestError {
	var statusErr *nhttp.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &RemoteRequestError{Kind: KindTimeout, Err: err}
	case errors.As(err, &statusErr):
		kind := KindClient
		if statusErr.StatusCode >= http.StatusInternalServerError {
			kind = KindServer
		}
		return &RemoteRequestError{Kind: kind, StatusCode: statusErr.StatusCode, Err: err}
	case errors.Is(err, rembg.ErrMalformedResponse):
		return &RemoteRequestError{Kind: KindMalformed, Err: err}
	default:
		return &RemoteRequestError{Kind: KindTransport, Err: err}
	}
}

// User-facing notices.
const (
	NoticeMissingInput = "Please upload an image!"
	NoticeBusy         = "Background removal is already in progress."
	NoticeNotImage     = "Please choose an image file (PNG, JPG or GIF)."
	NoticeRemoteFailed = "An error occurred while removing the background."
	NoticeUnexpected   = "Something went wrong. Please try again."
)

// Notice maps an error from the controller to the message shown to the user.
func Notice(err error) string {
	var remoteErr *RemoteRequestError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingInput):
		return NoticeMissingInput
	case errors.Is(err, ErrBusy):
		return NoticeBusy
	case errors.Is(err, ErrNotImage), errors.Is(err, dataurl.ErrEmptyImage):
		return NoticeNotImage
	case errors.As(err, &remoteErr):
		return NoticeRemoteFailed
	default:
		return NoticeUnexpected
	}
}
