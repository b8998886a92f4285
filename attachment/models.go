package attachment

import (
	"io"
	"time"
)

// Record is the metadata row kept for every stored file. The bytes live in
// the object store under FileHandle; the row ties them to a document.
type Record struct {
	ID              string
	Kind            string
	DocumentID      string
	UploaderActorID string
	FileHandle      string
	OriginalName    string
	SizeBytes       int64
	UploadedAt      time.Time
}

// Upload describes an incoming file.
type Upload struct {
	Reader      io.Reader
	Filename    string
	Size        int64
	ContentType string
}
