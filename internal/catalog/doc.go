// Package catalog defines the typed table declarations relcat manages and
// the error taxonomy shared by the store, loader and query engine.
//
// A Catalog is an ordered list of tables of three kinds:
//   - Dimension: lookup rows identified by a unique natural key
//   - Fact: measure rows linking to dimensions (and earlier facts)
//   - Relationship: junction rows linking two or more rows, optionally
//     carrying a start/end span
//
// Tables are declared in dependency order: a link may only target a table
// declared before it. Every table has an implicit INTEGER id primary key,
// and rows reference each other only through those ids.
//
// # Errors
//
// Four error types cover every failure the engine reports:
//   - SchemaError: declaration invalid or conflicting with the store
//   - ValidationError: malformed row or query parameter
//   - IntegrityError: unresolved or violated key/link constraint
//   - NotFoundError: query names an unknown entity or attribute
//
// Each matches a sentinel (ErrSchema, ErrValidation, ErrIntegrity,
// ErrNotFound) through errors.Is, so wrapped errors stay classifiable.
package catalog
