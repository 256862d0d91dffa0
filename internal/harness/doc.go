// Package harness runs YAML fixture scenarios against a fresh catalog
// store and checks load and query outcomes.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: library_basics
//	description: "Issues per book under a left outer join"
//	catalog: library            # builtin name or CUE directory
//	reference: 2024-06-30T12:00:00Z
//	batches:
//	  - dimensions:
//	      - { table: genre, key: Drama }
//	    facts:
//	      - table: book
//	        handle: hamlet
//	        values: { title: Hamlet, author: Shakespeare, year: 1603 }
//	        links: { genre_id: Drama }
//	    expect: { created: 1, facts: 1 }
//	queries:
//	  - name: issues_per_book
//	    join: { left: book, right: book_issue, project: "title, count(*) as issues", kind: left }
//	    expect:
//	      rows: [[Hamlet, 0]]
//
// Link values name their target by natural key ("Drama"), by the handle
// of a fact declared earlier in the same batch ("@hamlet"), or by row id
// ("#3").
//
// # Expectations
//
// Batches may expect an error category (validation, integrity, schema,
// not_found, any) and message fragment, or row counts. Queries may expect
// an error category, a row count, the column list, the full row list, or
// a subset of the first row. Numbers compare numerically and times as
// instants.
//
// # Deterministic Testing
//
// Every scenario runs on its own in-memory SQLite database with sequential
// batch ids, so repeated runs produce identical snapshots. RunAll runs
// independent scenario files concurrently; RunWithGolden compares a
// scenario's snapshot against testdata/golden.
package harness
