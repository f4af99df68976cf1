// Package indexer keeps denormalized search documents in sync with the
// entities they embed.
//
// A parent document (say an Article) embeds a snapshot of fields from a
// child entity (its Author). When the child is saved, every parent whose
// foreign key points at it must be regenerated and written to the search
// engine again. This package wires that up:
//
// A Catalog holds the entity kinds known to the system, along with the
// Indexer which regenerates the search document of each index-resident
// kind. A Registry records which parent kind embeds which child kind,
// and attaches a Trigger to the child's after save lifecycle, exactly
// once per pair. The Trigger turns each save into a Task, which the
// Dispatcher either runs inline, blocking the save until the index write
// is done, or hands to a job queue for a worker to run later. Either way,
// FanOut finds the affected parents, regenerates their documents from
// current data, and writes them all in a single bulk request.
//
// Since documents are always regenerated whole from current data, running
// the same Task twice, or two Tasks for the same child in any order,
// converges on the same index state. Delivery is at least once; there is
// no locking, and no retry within this package.
//
// Method 2:
// Automatic propagation only covers entities that get saved. A Server
// continuously loops over all the entities in the store, regenerating and
// reindexing their documents, which provides eventual consistency for
// documents that live updates never touched. I recommend running both.
package indexer
