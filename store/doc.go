// Package store is the SQLite layer of the stoicheia engine: schema
// bootstrap, transactions, the axis registry, the patch store, the commit
// graph and the tag table.
//
// Every multi-row mutation happens inside one transaction; foreign keys
// are declared deferrable so parent and child rows can be inserted in
// either order within it. The transaction boundary is what enforces
// referential integrity.
package store
