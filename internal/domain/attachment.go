package domain

import "io"

// Attachment is a local file picked for upload. The sync engine hands it to an
// uploader and sends the returned URL as the message payload.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Kind        Kind
	Body        io.Reader
}
