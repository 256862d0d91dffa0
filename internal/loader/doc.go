// Package loader writes inbound rows into a catalog's tables.
//
// A Batch carries dimension, fact and relationship rows. LoadBatch
// validates every row before touching the store, then writes the three
// groups in dependency order inside one transaction:
//
//	dimensions    -> looked up by natural key, created when absent
//	facts         -> links resolved by key, batch handle or id
//	relationships -> links resolved the same way
//
// A link naming a natural key that does not exist yet creates the
// dimension row from the key alone when the dimension has no other
// required attributes; otherwise the link is unresolved and the batch is
// rolled back with a catalog.IntegrityError.
package loader
