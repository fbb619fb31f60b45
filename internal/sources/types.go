package sources

import (
	"context"
	"fmt"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/services"
)

// Posting is one listing as returned by a source, before deduplication.
type Posting struct {
	Source         string
	SourceJobID    string
	URL            string
	Title          string
	Company        string
	Location       string
	Description    string
	SalaryMin      *float64
	SalaryMax      *float64
	SalaryCurrency string
	Remote         bool
	PostedAt       *time.Time
	EditedAt       *time.Time
}

// ParseError records a listing that could not be normalized.
type ParseError struct {
	Source string
	Page   int
	Index  int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s page %d listing %d: %s", e.Source, e.Page, e.Index, e.Reason)
}

// Is lets errors.Is match services.ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == services.ErrParse
}

// Page is one fetched page of postings, in source order.
type Page struct {
	Source      string
	Number      int
	Postings    []Posting
	ParseErrors []*ParseError
}

// Result holds the pages an adapter produced, in fetch order.
type Result struct {
	Pages []Page
}

// Postings returns the number of postings across pages.
func (r Result) Postings() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Postings)
	}
	return n
}

// ParseErrors returns the number of parse errors across pages.
func (r Result) ParseErrors() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.ParseErrors)
	}
	return n
}

// FetchError reports a source-level failure. Pages fetched before the
// failure are still returned alongside it.
type FetchError struct {
	Source string
	Page   int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Source, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Adapter fetches postings for one kind of source.
type Adapter interface {
	Kind() string
	Fetch(ctx context.Context, src config.Source) (Result, error)
}
