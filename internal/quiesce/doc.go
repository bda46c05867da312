// Package quiesce provides a tag based grace period for structures that are
// read without locks and unlinked under a lock.
//
// Readers call Acquire before walking the structure and Release the Token when
// done. Each Acquire records the current generation on the reader and then bumps
// it, so readers that start later always carry a newer tag. A writer that
// unlinked something calls Increment and then Wait with the readers that may
// still be walking:
//
//	var d quiesce.Domain
//
//	func walk(r *quiesce.Reader) {
//		tok := d.Acquire(r)
//		defer tok.Release()
//		for _, n := range loadList() {
//			visit(n)
//		}
//	}
//
//	func remove(n *node) {
//		unlink(n)
//		d.Increment().Wait(readers())
//		recycle(n)
//	}
//
// Wait returns once every reader is idle or has a tag at least as new as the
// writer's, and once every other concurrent writer has finished waiting too.
// Waiting spins with runtime.Gosched; it is bounded by how long readers take
// and by how long new writers keep arriving.
package quiesce
