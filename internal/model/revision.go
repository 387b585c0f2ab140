package model

import "time"

// Revision is one immutable snapshot of a registered document.
// A document has no row of its own: it is the set of all revisions sharing a
// registration number within a tenant, ordered by RevisionNumber (1-based,
// gapless). These are pure domain values with no persistence tags so they can
// cross layers freely.
type Revision struct {
	ID                 string           `json:"id"`
	Tenant             string           `json:"tenant"`
	RegistrationNumber string           `json:"registration_number"`
	RevisionNumber     int              `json:"revision_number"`
	Description        string           `json:"description"`
	DocumentType       string           `json:"document_type"`
	Confidential       bool             `json:"confidential"`
	LegalCitation      string           `json:"legal_citation,omitempty"`
	Archived           bool             `json:"archived"`
	CreatedBy          string           `json:"created_by"`
	CreatedAt          time.Time        `json:"created_at"`
	Metadata           []MetadataEntry  `json:"metadata"`
	Attachments        []FileAttachment `json:"attachments"`
}

// MetadataEntry is a key/value pair on a revision. Duplicate keys are allowed;
// order carries no meaning.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FileAttachment belongs to exactly one revision. An update that carries the
// previous revision's files forward copies the bytes under a fresh id and
// storage path; attachment ids are never shared between revisions.
type FileAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StoragePath string `json:"-"`
}

// DocumentType is a tenant-scoped type code with a display name. The catalog
// that owns these is read-only from this service's point of view.
type DocumentType struct {
	Tenant      string `json:"tenant"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}
