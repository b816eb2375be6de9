package contactindex

import (
	"strings"
	"unicode"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
)

// isSpace reports whether r is whitespace for token and query handling: the
// space separators (Zs), the ASCII controls \t \n \v \f \r, the line and
// paragraph separators and the byte order mark. Unlike unicode.IsSpace it
// excludes U+0085 (NEL) and includes U+FEFF, matching the search box in the
// inbox UI.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// Normalize lower-cases s and drops every rune that is not a-z, 0-9, '@' or
// whitespace (see isSpace). Dropped runes are removed, not replaced, so
// "+1-555-123" becomes "1555123".
func Normalize(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '@', isSpace(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens builds the searchable string of a contact from its non-empty
// identity fields.
func Tokens(c model.Contact) string {
	fields := [...]string{
		c.Name,
		c.FirstName,
		c.LastName,
		c.PhoneNumber,
		c.Email,
		c.CompanyName,
		c.City,
		c.State,
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return Normalize(strings.Join(parts, " "))
}

// Terms normalizes a query and splits it into search terms. A query made
// only of stripped characters yields no terms.
func Terms(query string) []string {
	return strings.FieldsFunc(Normalize(query), isSpace)
}
