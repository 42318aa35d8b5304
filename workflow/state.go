package workflow

import "github.com/chaos-io/rembg-web/blob"

type State int

const (
	StateIdle State = iota
	StateUploading
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadedImage is the file chosen by the user.
type UploadedImage struct {
	Name        string
	ContentType string
	Data        []byte
	DataURL     string
}

// ProcessedImage points at the service result held in the blob registry.
type ProcessedImage struct {
	Ref         blob.Ref
	ContentType string
	Size        int
}

// Attachment is what Download hands to the caller to save.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Snapshot is a read-only view of the controller for rendering.
type Snapshot struct {
	State          State
	FileName       string
	PreviewDataURL string
	Processed      *ProcessedImage
}

// Loading reports whether the processing indicator should be shown.
func (s Snapshot) Loading() bool {
	return s.State == StateUploading
}

// CanDownload reports whether the download action is enabled.
func (s Snapshot) CanDownload() bool {
	return s.State == StateDone && s.Processed != nil
}

func (s Snapshot) HasImage() bool {
	return s.PreviewDataURL != ""
}
