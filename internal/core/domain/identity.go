package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Role is the single access level carried by an identity. Roles are mutually exclusive.
type Role string

const (
	RoleUser    Role = "user"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a claim or stored value to a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// DefaultAvatar is assigned to identities created without an avatar.
const DefaultAvatar = "https://placehold.co/150x150/EFEFEF/AAAAAA?text=Avatar"

// DefaultStudentName is given to identities created by a first OTP request.
const DefaultStudentName = "New Student"

// Identity is a principal that can authenticate with an OTP challenge or a password.
// At least one of Email and Phone is set; each is unique across identities when present.
type Identity struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	Avatar       string
	Notes        string
	Challenge    *OTPChallenge
	Enrollments  []Enrollment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasCredential reports whether a password hash is stored.
func (i Identity) HasCredential() bool {
	return i.PasswordHash != ""
}

// Principal returns the authenticated-context value for the identity.
func (i Identity) Principal() Principal {
	return Principal{IdentityID: i.ID, Role: i.Role}
}

// Enrollment returns the enrollment for courseID, if any.
func (i Identity) Enrollment(courseID string) (Enrollment, bool) {
	for _, e := range i.Enrollments {
		if e.CourseID == courseID {
			return e, true
		}
	}
	return Enrollment{}, false
}

// Enrollment tracks a student's progress through one course.
type Enrollment struct {
	CourseID            string
	Progress            int
	CompletedLectureIDs []string
	EnrolledAt          time.Time
}

// HasCompleted reports whether lectureID was already marked complete.
func (e Enrollment) HasCompleted(lectureID string) bool {
	for _, id := range e.CompletedLectureIDs {
		if id == lectureID {
			return true
		}
	}
	return false
}

// IdentityPatch carries optional field updates. Nil fields are left untouched.
type IdentityPatch struct {
	Name         *string
	Email        *string
	Phone        *string
	Avatar       *string
	Notes        *string
	PasswordHash *string
}

// IsEmpty reports whether the patch changes nothing.
func (p IdentityPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Avatar == nil && p.Notes == nil &&
		p.PasswordHash == nil
}

// CredentialClaim is written onto an identity that has no credential yet. Empty Name, Phone and
// Role leave the stored values untouched.
type CredentialClaim struct {
	Name         string
	Phone        string
	Role         Role
	PasswordHash string
}

// LoginKind tells which unique field a login identifier refers to.
type LoginKind string

const (
	LoginKindEmail LoginKind = "email"
	LoginKindPhone LoginKind = "phone"
)

// LoginID is a normalized login identifier.
type LoginID struct {
	Kind  LoginKind
	Value string
}

// ParseLoginID classifies raw as an email address or a phone number.
// Emails are lower-cased. Phones may contain a leading '+', digits, spaces, and dashes.
func ParseLoginID(raw string) (LoginID, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return LoginID{}, false
	}

	if strings.Contains(value, "@") {
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return LoginID{}, false
		}
		return LoginID{Kind: LoginKindEmail, Value: strings.ToLower(value)}, true
	}

	digits := 0
	var b strings.Builder
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return LoginID{}, false
		}
	}
	if digits < 7 || digits > 15 {
		return LoginID{}, false
	}
	return LoginID{Kind: LoginKindPhone, Value: b.String()}, true
}

// Principal is the verified identity and role asserted by a session token.
type Principal struct {
	IdentityID string
	Role       Role
}

// HasRole is the role-gate predicate: true iff the principal's role is one of required.
func (p Principal) HasRole(required ...Role) bool {
	for _, r := range required {
		if p.Role == r {
			return true
		}
	}
	return false
}
