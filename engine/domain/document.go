package domain

import "time"

// Provenance records where a document's content came from when it was not
// extracted from portal XML.
type Provenance struct {
	Source        string    `json:"source"` // "xml" or "ocr"
	Model         string    `json:"model,omitempty"`
	PromptVersion string    `json:"prompt_version,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	ResponseID    string    `json:"response_id,omitempty"`
}

// Document is the parent record for one piece of legislation.
type Document struct {
	ID                 string      `json:"id"`
	URI                string      `json:"uri"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	EnactmentDate      string      `json:"enactment_date,omitempty"`
	ModifiedDate       string      `json:"modified_date,omitempty"`
	Category           Category    `json:"category"`
	Type               DocType     `json:"type"`
	Year               int         `json:"year"`
	Number             string      `json:"number"`
	Status             string      `json:"status,omitempty"`
	Extent             []Extent    `json:"extent,omitempty"`
	NumberOfProvisions int         `json:"number_of_provisions"`
	Provenance         *Provenance `json:"provenance,omitempty"`
}

// Section is a child provision of a Document.
type Section struct {
	ID            string        `json:"id"`
	URI           string        `json:"uri"`
	LegislationID string        `json:"legislation_id"`
	Title         string        `json:"title,omitempty"`
	Text          string        `json:"text"`
	Extent        []Extent      `json:"extent,omitempty"`
	ProvisionType ProvisionType `json:"provision_type"`
	Number        string        `json:"number,omitempty"`
	CommentaryIDs []string      `json:"commentary_ids,omitempty"`
	Provenance    *Provenance   `json:"provenance,omitempty"`
}

// ParentParts derives (type, year, number) from the parent ID by
// positional split.
func (s Section) ParentParts() IDParts {
	parts, _ := SplitID(s.LegislationID)
	return parts
}

// Commentary is an editorial annotation attached to provisions, typically
// citing amending instruments.
type Commentary struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Amendment records one inter-act effect. It serves both as a searchable
// record and as the change manifest for incremental refresh.
type Amendment struct {
	ID                    string `json:"id"`
	ChangedDocumentID     string `json:"changed_document_id"`
	ChangedProvisionURL   string `json:"changed_provision_url,omitempty"`
	AffectingDocumentID   string `json:"affecting_document_id,omitempty"`
	AffectingProvisionURL string `json:"affecting_provision_url,omitempty"`
	TypeOfEffect          string `json:"type_of_effect"`
	AffectingYear         int    `json:"affecting_year"`
}

// ExplanatoryNote is one note paragraph attached to a parent document.
type ExplanatoryNote struct {
	ID            string   `json:"id"`
	LegislationID string   `json:"legislation_id"`
	Route         []string `json:"route,omitempty"` // ordered heading breadcrumbs
	Order         int      `json:"order"`
	NoteType      string   `json:"note_type,omitempty"`
	SectionType   string   `json:"section_type,omitempty"`
	SectionNumber string   `json:"section_number,omitempty"`
	Text          string   `json:"text"`
}
