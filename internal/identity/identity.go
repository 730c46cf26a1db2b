// Package identity derives canonical contact references from raw
// activity records so that calls, spaces, and tasks about the same
// person or company correlate under one key.
package identity

import (
	"strings"

	"github.com/attendhq/attend/internal/record"
)

// SourceKind names the upstream collection a record came from.
type SourceKind string

const (
	SourceCall  SourceKind = "call"
	SourceSpace SourceKind = "space"
	SourceTask  SourceKind = "task"
	SourceEvent SourceKind = "event"
)

// Kind classifies what a resolved identity refers to.
type Kind string

const (
	KindPerson  Kind = "person"
	KindCompany Kind = "company"
	KindUnknown Kind = "unknown"
)

// ContactRef is a canonical, deterministic identity reference. Key is a
// namespaced normalized identifier (email:, phone:, company:, name:).
// Hint is a masked display form and never reveals the full identifier.
type ContactRef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Hint  string `json:"hint,omitempty"`
	Kind  Kind   `json:"kind"`
}

// Candidate field names per concern. Upstreams disagree on naming, so
// resolution probes each list in order.
var (
	emailFields   = []string{"email", "contactEmail", "customerEmail", "from"}
	phoneFields   = []string{"phoneNumber", "to", "number", "phone", "contactPhone"}
	companyFields = []string{"company", "companyName", "organization", "org"}
	nameFields    = []string{"contactName", "name", "customerName", "callerName", "displayName"}
)

// genericSpaceTitles are placeholder titles that carry no identity.
var genericSpaceTitles = map[string]bool{
	"space":        true,
	"session":      true,
	"chat":         true,
	"new":          true,
	"neu":          true,
	"unterhaltung": true,
	"conversation": true,
	"untitled":     true,
	"ohne titel":   true,
	"new chat":     true,
	"neuer chat":   true,
}

// Resolve derives a ContactRef from a raw record. Priority order, first
// match wins: email, phone, company, person name; spaces additionally
// fall back to their title as an unverified identity. Resolution is a
// pure function of the record's fields; unresolvable records return
// ok=false and are excluded from cross-source correlation.
func Resolve(rec record.Record, src SourceKind) (ContactRef, bool) {
	if rec == nil {
		return ContactRef{}, false
	}

	name, _ := rec.FirstString(nameFields...)

	if email, ok := rec.FirstString(emailFields...); ok && strings.Contains(email, "@") {
		norm := strings.ToLower(strings.TrimSpace(email))
		label := name
		if label == "" {
			label = localPart(norm)
		}
		return ContactRef{
			Key:   "email:" + norm,
			Label: label,
			Hint:  MaskEmail(norm),
			Kind:  KindPerson,
		}, true
	}

	if raw, ok := rec.FirstString(phoneFields...); ok {
		if phone := NormalizePhone(raw); len(strings.TrimPrefix(phone, "+")) >= 6 {
			label := name
			hint := MaskPhone(phone)
			if label == "" {
				label = hint
			}
			return ContactRef{
				Key:   "phone:" + phone,
				Label: label,
				Hint:  hint,
				Kind:  KindPerson,
			}, true
		}
	}

	if company, ok := rec.FirstString(companyFields...); ok {
		if key := NormalizeKey(company); key != "" {
			return ContactRef{
				Key:   "company:" + key,
				Label: company,
				Kind:  KindCompany,
			}, true
		}
	}

	if len(name) >= 2 {
		if key := NormalizeKey(name); key != "" {
			return ContactRef{
				Key:   "name:" + key,
				Label: name,
				Kind:  KindPerson,
			}, true
		}
	}

	if src == SourceSpace {
		if title, ok := rec.String("title"); ok && len(title) >= 2 {
			if !genericSpaceTitles[strings.ToLower(strings.TrimSpace(title))] {
				if key := NormalizeKey(title); key != "" {
					return ContactRef{
						Key:   "name:" + key,
						Label: title,
						Kind:  KindUnknown,
					}, true
				}
			}
		}
	}

	return ContactRef{}, false
}

// NormalizeKey lowercases, trims, collapses internal whitespace to
// underscores, and strips anything outside [a-z0-9_@.+-].
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			inSpace = true
			continue
		}
		if inSpace {
			if b.Len() > 0 {
				b.WriteByte('_')
			}
			inSpace = false
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '@', r == '.', r == '+', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone keeps digits and an optional leading +.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***@" + email[at+1:]
}

// MaskPhone keeps the first three and last three digits.
func MaskPhone(phone string) string {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 6 {
		return "***"
	}
	return digits[:3] + "***" + digits[len(digits)-3:]
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
