package extraction

// DefaultMIMEType is assumed for byte documents with no declared type.
const DefaultMIMEType = "application/pdf"

const textMIMEType = "text/plain"

// Document is the input to extraction: either raw bytes with a media type,
// or text that was already pulled out of the document.
type Document struct {
	Name     string
	Data     []byte
	MIMEType string
	Text     string
}

// IsEmpty reports whether the document carries neither bytes nor text.
func (d Document) IsEmpty() bool {
	return len(d.Data) == 0 && d.Text == ""
}

// Size returns the number of bytes that would be sent to the model.
func (d Document) Size() int64 {
	if len(d.Data) > 0 {
		return int64(len(d.Data))
	}
	return int64(len(textPart(d.Text)))
}

// payload returns the bytes and media type sent for the document. Text is
// sent with its label so inline and uploaded text read the same.
func (d Document) payload() ([]byte, string) {
	if len(d.Data) > 0 {
		return d.Data, d.mimeType()
	}
	return []byte(textPart(d.Text)), textMIMEType
}

func (d Document) mimeType() string {
	if d.MIMEType == "" {
		return DefaultMIMEType
	}
	return d.MIMEType
}
