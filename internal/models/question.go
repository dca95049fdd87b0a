package models

// Question is static reference data seeded once before first use.
// This service never mutates the catalog.
type Question struct {
	ID    int    `db:"id" json:"id"`
	Text  string `db:"text" json:"text"`
	QType string `db:"qtype" json:"qtype"`
	Order int    `db:"order" json:"order"`
}

// IdentityField enumerates the answer fields used to prevent duplicate
// completed submissions.
type IdentityField string

const (
	IdentityEmail     IdentityField = "email"
	IdentityPhone     IdentityField = "phone"
	IdentityCadastral IdentityField = "cadastral"
)

// QuestionMap binds the well-known questions to their stable catalog
// identifiers. It is resolved once at startup from configuration, never
// re-derived from question text.
type QuestionMap struct {
	FullNameID  int
	CadastralID int
	EmailID     int
	PhoneID     int
	CommentsID  int
}

// IdentityQuestionID returns the question id carrying the given identity
// field, or 0 when the field is unknown.
func (m QuestionMap) IdentityQuestionID(field IdentityField) int {
	switch field {
	case IdentityEmail:
		return m.EmailID
	case IdentityPhone:
		return m.PhoneID
	case IdentityCadastral:
		return m.CadastralID
	default:
		return 0
	}
}
