package synth

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/roach88/relcat/internal/loader"
)

// LibraryPolicy describes a synthetic lending library.
// Zero sizes and a nil ReturnRate take the defaults of
// DefaultLibraryPolicy.
type LibraryPolicy struct {
	Books         int
	Readers       int
	Issues        int
	ReturnRate    *float64 // Share of issues returned, 0 for none; nil takes the default
	MaxReturnDays int      // Return date is 1..MaxReturnDays after issue
	From, To      time.Time
}

// DefaultLibraryPolicy returns the policy used by `relcat generate`.
func DefaultLibraryPolicy() LibraryPolicy {
	return LibraryPolicy{
		Books:         20,
		Readers:       10,
		Issues:        40,
		ReturnRate:    Rate(0.7),
		MaxReturnDays: 60,
		From:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var (
	genres   = []string{"Drama", "Poetry", "Science", "History", "Fantasy", "Mystery"}
	statuses = []string{"active", "suspended", "expired"}
)

// Rate returns a pointer to share, for LibraryPolicy.ReturnRate.
func Rate(share float64) *float64 { return &share }

func (p LibraryPolicy) withDefaults() LibraryPolicy {
	d := DefaultLibraryPolicy()
	if p.Books <= 0 {
		p.Books = d.Books
	}
	if p.Readers <= 0 {
		p.Readers = d.Readers
	}
	if p.Issues < 0 {
		p.Issues = 0
	} else if p.Issues == 0 {
		p.Issues = d.Issues
	}
	if p.ReturnRate == nil || *p.ReturnRate < 0 || *p.ReturnRate > 1 {
		p.ReturnRate = d.ReturnRate
	}
	if p.MaxReturnDays <= 0 {
		p.MaxReturnDays = d.MaxReturnDays
	}
	if p.From.IsZero() {
		p.From = d.From
	}
	if !p.To.After(p.From) {
		p.To = p.From.AddDate(1, 0, 0)
	}
	return p
}

// Generate builds a batch for the library catalog: every genre and
// membership status, then books, readers and issue records. Books and
// readers are referenced by handle ("book-1", "reader-1", ...).
// Text columns come from a faker drawing on r, so they follow the seed
// too.
func (p LibraryPolicy) Generate(r Rand) loader.Batch {
	p = p.withDefaults()
	fake := gofakeit.NewFaker(r, false)
	var b loader.Batch

	for _, g := range genres {
		b.Dimensions = append(b.Dimensions, loader.DimensionRow{Table: "genre", Key: g})
	}
	for _, s := range statuses {
		b.Dimensions = append(b.Dimensions, loader.DimensionRow{Table: "membership_status", Key: s})
	}

	for i := 1; i <= p.Books; i++ {
		b.Facts = append(b.Facts, loader.FactRow{
			Table:  "book",
			Handle: fmt.Sprintf("book-%d", i),
			Values: map[string]any{
				"title":  fake.BookTitle(),
				"author": fake.BookAuthor(),
				"year":   fake.IntRange(1850, 2024),
			},
			Links: map[string]loader.Ref{"genre_id": loader.Key(pick(r, genres))},
		})
	}

	for i := 1; i <= p.Readers; i++ {
		b.Facts = append(b.Facts, loader.FactRow{
			Table:  "reader",
			Handle: fmt.Sprintf("reader-%d", i),
			Values: map[string]any{
				"full_name": fake.FirstName() + " " + fake.LastName(),
				"contact":   fake.Email(),
			},
			Links: map[string]loader.Ref{"membership_status_id": loader.Key(pick(r, statuses))},
		})
	}

	window := int(p.To.Sub(p.From) / time.Hour / 24)
	if window < 1 {
		window = 1
	}
	for range p.Issues {
		issued := p.From.AddDate(0, 0, r.IntN(window))
		values := map[string]any{"issue_date": issued}
		if r.Float64() < *p.ReturnRate {
			values["return_date"] = issued.AddDate(0, 0, 1+r.IntN(p.MaxReturnDays))
		}
		b.Relationships = append(b.Relationships, loader.RelationshipRow{
			Table:  "book_issue",
			Values: values,
			Links: map[string]loader.Ref{
				"book_id":   loader.Handle(fmt.Sprintf("book-%d", 1+r.IntN(p.Books))),
				"reader_id": loader.Handle(fmt.Sprintf("reader-%d", 1+r.IntN(p.Readers))),
			},
		})
	}
	return b
}

func pick(r Rand, from []string) string {
	return from[r.IntN(len(from))]
}
