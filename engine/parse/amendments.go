package parse

import (
	"strconv"

	"github.com/openlex/lexuk/engine/domain"
)

// ParseAmendments extracts inter-act effect records from a changes XML
// page. Each Effect element becomes one Amendment; records without an
// affected document URI are dropped.
func ParseAmendments(data []byte) ([]domain.Amendment, error) {
	root, err := Decode(data)
	if err != nil {
		return nil, err
	}

	var out []domain.Amendment
	for _, eff := range root.FindAll("Effect") {
		affected := eff.Attr("AffectedURI")
		if affected == "" {
			continue
		}
		year, _ := strconv.Atoi(eff.Attr("AffectingYear"))
		a := domain.Amendment{
			ID:                    eff.Attr("EffectId"),
			ChangedDocumentID:     domain.NormalizeID(affected),
			ChangedProvisionURL:   eff.Attr("AffectedProvisionsURI"),
			AffectingDocumentID:   domain.NormalizeID(eff.Attr("AffectingURI")),
			AffectingProvisionURL: eff.Attr("AffectingProvisionsURI"),
			TypeOfEffect:          eff.Attr("Type"),
			AffectingYear:         year,
		}
		if a.AffectingDocumentID == domain.AuthorityBase {
			a.AffectingDocumentID = ""
		}
		if a.ID == "" {
			a.ID = a.ChangedDocumentID + "#" + a.TypeOfEffect + "#" + strconv.Itoa(year)
		}
		out = append(out, a)
	}
	return out, nil
}
