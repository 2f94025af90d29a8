package domain

import (
	"errors"
	"log/slog"
)

// Validation sentinels.
var (
	ErrMissingID      = errors.New("missing id")
	ErrMissingTitle   = errors.New("missing title")
	ErrUnknownType    = errors.New("unknown document type")
	ErrTypeMismatch   = errors.New("type inconsistent with id")
	ErrMissingParent  = errors.New("missing legislation_id")
	ErrMissingText    = errors.New("missing text")
	ErrBadProvision   = errors.New("invalid provision type")
)

// ValidateDocument checks a parent document before upsert. The type must be
// consistent with the id's second path component (I2), and the explicit
// category wins over the derived one with the conflict logged (I5).
func ValidateDocument(d *Document, log *slog.Logger) error {
	if d.ID == "" {
		return NewValidationError("id", "", ErrMissingID)
	}
	if d.Title == "" {
		return NewValidationError("title", d.ID, ErrMissingTitle)
	}
	if !KnownType(d.Type) {
		return NewValidationError("type", string(d.Type), ErrUnknownType)
	}
	parts, ok := SplitID(d.ID)
	if !ok {
		return NewValidationError("id", d.ID, ErrMissingID)
	}
	if parts.Type != d.Type {
		return NewValidationError("type", string(d.Type), ErrTypeMismatch)
	}

	derived := CategoryOf(d.Type)
	if d.Category == "" {
		d.Category = derived
	} else if d.Category != derived && log != nil {
		log.Warn("category conflicts with derivation, explicit value wins",
			"doc_id", d.ID, "explicit", d.Category, "derived", derived)
	}
	if d.Year == 0 {
		d.Year = parts.YearInt()
	}
	if d.Number == "" {
		d.Number = parts.Number
	}
	return nil
}

// ValidateSection checks a child provision before upsert.
func ValidateSection(s *Section) error {
	if s.ID == "" {
		return NewValidationError("id", "", ErrMissingID)
	}
	if s.LegislationID == "" {
		return NewValidationError("legislation_id", s.ID, ErrMissingParent)
	}
	if s.Text == "" {
		return NewValidationError("text", s.ID, ErrMissingText)
	}
	if s.ProvisionType != ProvisionSection && s.ProvisionType != ProvisionSchedule {
		return NewValidationError("provision_type", string(s.ProvisionType), ErrBadProvision)
	}
	return nil
}

// ValidateAmendment checks an amendment record before upsert.
func ValidateAmendment(a *Amendment) error {
	if a.ID == "" {
		return NewValidationError("id", "", ErrMissingID)
	}
	if a.ChangedDocumentID == "" {
		return NewValidationError("changed_document_id", a.ID, ErrMissingParent)
	}
	return nil
}
