package pipeline

// Default values for documents recorded by the persistence steps.
const (
	// DefaultDocumentType is the document_type of every processed file.
	DefaultDocumentType = "INVOICE"

	// DefaultSourceSystem is used when the caller does not name one.
	DefaultSourceSystem = "UPLOAD"

	// DefaultModelName is recorded in model_outputs when none is configured.
	DefaultModelName = "gemini-2.5-flash"
)

// Parsing statuses written to documents.parsing_status.
const (
	StatusPending = "PENDING"
	StatusParsed  = "PARSED"
	StatusFailed  = "FAILED"
)
