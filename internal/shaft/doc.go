// Package shaft owns the physical layer of the stacking model.
//
// Responsibilities: the bounded-width occupancy grid, piece shapes, the
// cyclic impulse sequence, and resolving a single piece's fall from spawn
// to rest.
// Key types: Grid, Piece, Repertoire, Impulses, Spawn.
//
// Dependency rule: shaft depends on nothing else in this module. No
// fingerprinting, caching or I/O belongs here.
package shaft
