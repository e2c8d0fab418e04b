// Package roster looks up registrants of the event by email. The primary
// source is the registration spreadsheet; a CSV export in S3 can back it up.
package roster

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Registrant is one row of the registration roster.
type Registrant struct {
	FirstName string
	LastName  string
	Email     string
}

// Lookup finds a registrant. A missing email yields (nil, nil).
type Lookup interface {
	Find(ctx context.Context, email string) (*Registrant, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, email string) (*Registrant, error)

func (f LookupFunc) Find(ctx context.Context, email string) (*Registrant, error) {
	return f(ctx, email)
}

// normalize is the form emails are compared in.
func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lastMatch returns the index of the last cell equal to email, or -1. Later
// rows win so re-registrations replace earlier ones.
func lastMatch(cells []string, email string) int {
	want := normalize(email)
	for i := len(cells) - 1; i >= 0; i-- {
		if normalize(cells[i]) == want {
			return i
		}
	}
	return -1
}

// Fallback consults secondary only when primary fails outright. A miss in
// primary is authoritative.
type Fallback struct {
	Primary   Lookup
	Secondary Lookup
	Logger    *zap.Logger
}

func (f *Fallback) Find(ctx context.Context, email string) (*Registrant, error) {
	r, err := f.Primary.Find(ctx, email)
	if err == nil || f.Secondary == nil {
		return r, err
	}
	if f.Logger != nil {
		f.Logger.Warn("primary roster failed, using fallback", zap.Error(err))
	}
	return f.Secondary.Find(ctx, email)
}
