// Package search builds IMAP SEARCH expressions. A Criteria value renders to
// the canonical RFC 3501 string form and converts to the codec's structured
// criteria for command issuance.
package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"

	"github.com/velomail/imapkit/internal/utils"
)

// Criteria is an immutable SEARCH expression.
type Criteria struct {
	str    string
	fields []interface{}
}

// String returns the canonical SEARCH argument form, e.g.
// `(SINCE 01-Jan-2024 FROM "a@b")`.
func (c Criteria) String() string {
	return c.str
}

// Build converts to the codec's structured criteria.
func (c Criteria) Build() (*imap.SearchCriteria, error) {
	out := imap.NewSearchCriteria()
	if err := out.ParseWithCharset(c.fields, nil); err != nil {
		return nil, fmt.Errorf("invalid search criteria %q: %w", c.str, err)
	}
	return out, nil
}

func keyword(name string) Criteria {
	return Criteria{str: name, fields: []interface{}{name}}
}

func All() Criteria        { return keyword("ALL") }
func Seen() Criteria       { return keyword("SEEN") }
func Unseen() Criteria     { return keyword("UNSEEN") }
func Flagged() Criteria    { return keyword("FLAGGED") }
func Unflagged() Criteria  { return keyword("UNFLAGGED") }
func Answered() Criteria   { return keyword("ANSWERED") }
func Unanswered() Criteria { return keyword("UNANSWERED") }
func Deleted() Criteria    { return keyword("DELETED") }
func Undeleted() Criteria  { return keyword("UNDELETED") }
func Draft() Criteria      { return keyword("DRAFT") }

func dated(name string, date time.Time) Criteria {
	d := utils.FormatIMAPDate(date)
	return Criteria{
		str:    name + " " + d,
		fields: []interface{}{name, d},
	}
}

func Before(date time.Time) Criteria { return dated("BEFORE", date) }
func On(date time.Time) Criteria     { return dated("ON", date) }
func Since(date time.Time) Criteria  { return dated("SINCE", date) }

// Recent matches messages received within the last n days.
func Recent(days int) Criteria {
	return Since(time.Now().AddDate(0, 0, -days))
}

func quoted(name, value string) Criteria {
	return Criteria{
		str:    name + " " + utils.QuoteIMAPString(value),
		fields: []interface{}{name, value},
	}
}

func From(address string) Criteria { return quoted("FROM", address) }
func To(address string) Criteria   { return quoted("TO", address) }
func Subject(s string) Criteria    { return quoted("SUBJECT", s) }
func Body(s string) Criteria       { return quoted("BODY", s) }
func Text(s string) Criteria       { return quoted("TEXT", s) }

func Header(field, value string) Criteria {
	return Criteria{
		str:    "HEADER " + utils.QuoteIMAPString(field) + " " + utils.QuoteIMAPString(value),
		fields: []interface{}{"HEADER", field, value},
	}
}

// And conjoins criteria: `(a b c)`. With no arguments it degrades to ALL.
func And(criteria ...Criteria) Criteria {
	if len(criteria) == 0 {
		return All()
	}
	if len(criteria) == 1 {
		return criteria[0]
	}

	strs := make([]string, 0, len(criteria))
	var fields []interface{}
	for _, c := range criteria {
		strs = append(strs, c.str)
		fields = append(fields, c.fields...)
	}
	return Criteria{
		str:    "(" + strings.Join(strs, " ") + ")",
		fields: fields,
	}
}

// Or disjoins two criteria: `(OR a b)`.
func Or(a, b Criteria) Criteria {
	return Criteria{
		str:    "(OR " + a.str + " " + b.str + ")",
		fields: []interface{}{"OR", group(a), group(b)},
	}
}

// Not negates a criteria: `NOT (a)`.
func Not(a Criteria) Criteria {
	return Criteria{
		str:    "NOT (" + a.str + ")",
		fields: []interface{}{"NOT", group(a)},
	}
}

// group nests a multi-field criteria as a parenthesized list for the codec.
func group(c Criteria) interface{} {
	if len(c.fields) == 1 {
		return c.fields[0]
	}
	return c.fields
}
