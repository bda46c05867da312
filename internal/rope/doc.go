// Package rope provides a growable bag of pointers owned by one goroutine and
// readable by any other.
//
// A rope is a chain of chunks. The first chunk has a fixed capacity and every
// chunk appended after it has twice the capacity of the previous one. Capacity
// never shrinks. Each chunk indexes its slots with a hierarchical bitmap, so
// finding the next free or occupied slot costs O(log n) rather than a linear
// scan.
//
// The owner puts and deletes values. Other goroutines may iterate and read
// values with Iterator.Claim, which bumps a per-slot claim counter and then
// checks the slot still holds the value it read. The owner never vacates a slot
// with a claim outstanding: it marks the slot done instead and leaves it
// occupied until a later Delete observes that the claims drained.
package rope
