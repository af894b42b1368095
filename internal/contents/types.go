// Package contents provides the HTTP client for the remote contents service.
package contents

import "time"

// Entry type values.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeNotebook  = "notebook"
)

// Entry describes a file or directory as returned by the contents service.
type Entry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Writable     bool      `json:"writable"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
	Mimetype     string    `json:"mimetype,omitempty"`
	Format       string    `json:"format,omitempty"`
	Size         int64     `json:"size,omitempty"`
	Content      []Entry   `json:"content,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Type == TypeDirectory
}

// Chunk addresses one piece of a chunked save. Index is 1-based; Last
// marks the terminal piece.
type Chunk struct {
	Index int  `json:"index"`
	Last  bool `json:"last"`
}

// SaveRequest is the body for a save call.
type SaveRequest struct {
	Type    string `json:"type"`
	Format  string `json:"format,omitempty"`
	Name    string `json:"name,omitempty"`
	Chunk   *Chunk `json:"chunk,omitempty"`
	Content string `json:"content,omitempty"`
}

// GetOptions controls what a get call returns.
type GetOptions struct {
	// Content requests the directory children or file body.
	Content bool
}

// ChangeEvent is one entry-change notification from the service feed.
// Old is nil for creations, New is nil for deletions.
type ChangeEvent struct {
	Old *Entry `json:"old_value,omitempty"`
	New *Entry `json:"new_value,omitempty"`
}
