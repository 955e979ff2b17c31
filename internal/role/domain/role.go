package domain

// Role is a lookup entity referenced by users. Read-only from the credential
// engine's perspective.
type Role struct {
	ID          string
	Name        string
	Description string
}

// InstitutionRoleName is the role exempt from the institutional email-domain
// check: institutions register with their own domains.
const InstitutionRoleName = "institucion"
