package domain

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// IdentifierKind tells which lookup a LoginIdentifier resolves through.
type IdentifierKind int

const (
	IdentifierEmail IdentifierKind = iota + 1
	IdentifierUsername
)

var (
	ErrIdentifierMissing   = errors.New("email or username is required")
	ErrIdentifierAmbiguous = errors.New("provide either email or username, not both")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrInvalidUsername     = errors.New("username must be 3-32 letters, digits, '.', '_' or '-'")
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}._-]+$`)
)

// LoginIdentifier names the account a login attempt targets: exactly one of
// an email address or a username, already in canonical form.
type LoginIdentifier struct {
	kind  IdentifierKind
	value string
}

// Kind returns which variant the identifier holds.
func (id LoginIdentifier) Kind() IdentifierKind { return id.kind }

// Value returns the canonical email or username.
func (id LoginIdentifier) Value() string { return id.value }

func (id LoginIdentifier) String() string {
	if id.kind == IdentifierEmail {
		return "email:" + id.value
	}
	return "username:" + id.value
}

// ParseLoginIdentifier builds the identifier from the two optional request
// fields. Exactly one must be non-blank.
func ParseLoginIdentifier(email, username string) (LoginIdentifier, error) {
	email, username = strings.TrimSpace(email), strings.TrimSpace(username)
	switch {
	case email != "" && username != "":
		return LoginIdentifier{}, ErrIdentifierAmbiguous
	case email != "":
		e, err := CanonicalEmail(email)
		if err != nil {
			return LoginIdentifier{}, err
		}
		return LoginIdentifier{kind: IdentifierEmail, value: e}, nil
	case username != "":
		u, err := CanonicalUsername(username)
		if err != nil {
			return LoginIdentifier{}, err
		}
		return LoginIdentifier{kind: IdentifierUsername, value: u}, nil
	default:
		return LoginIdentifier{}, ErrIdentifierMissing
	}
}

// CanonicalEmail trims and lower-cases an email address and checks its shape.
func CanonicalEmail(s string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(s))
	if e == "" || !emailPattern.MatchString(e) {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// CanonicalUsername applies NFKC normalization and Unicode case folding so
// visually identical names collide.
func CanonicalUsername(s string) (string, error) {
	u := cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
	n := utf8.RuneCountInString(u)
	if n < 3 || n > 32 || !usernamePattern.MatchString(u) {
		return "", ErrInvalidUsername
	}
	return u, nil
}
