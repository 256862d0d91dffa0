// Package queryir provides the query intermediate representation (IR)
// for relcat's analytical queries.
//
// QueryIR is the boundary between callers (CLI, fixtures, library users)
// and the SQL backend in package querysql. Queries name catalog entities
// and attributes by their logical names; the backend resolves them
// against a catalog and emits parameterized SQL.
//
// QUERY SHAPES:
//
//	TopN            rank one entity by a metric, dimension labels attached
//	JoinProjection  equi-join two entities, optionally aggregating the right
//	GroupAggregate  group one entity by a column or link, aggregate a measure
//	StaleFilter     open relationship rows older than a threshold
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method
// pattern. Only types in this package can implement them, so backends can
// switch exhaustively:
//
//	switch q := query.(type) {
//	case TopN:
//	case JoinProjection:
//	case GroupAggregate:
//	case StaleFilter:
//	}
//
// DETERMINISM:
//
// Every shape has a total order: ties are always broken by row id or
// group key, and time-dependent queries take their reference time as a
// parameter instead of reading the clock.
//
// Validate checks the parameters a query can be judged on without a
// catalog (n > 0, known functions and operators). Name resolution happens
// in the backend and fails with catalog.NotFoundError.
package queryir
