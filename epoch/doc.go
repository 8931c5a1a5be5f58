// Package epoch implements single-writer / multi-reader epoch-based
// memory reclamation. One writer goroutine replaces values behind
// epoch-protected pointers; any number of reader goroutines observe the
// previous value without locks, allocation, or reference counting on
// the read path.
//
// A Domain binds together a global epoch counter, a registry of reader
// slots, and the writer's GcHandle. Readers pin themselves to the
// current epoch before loading; the writer retires replaced values into
// an epoch-tagged queue and reclaims them once every reader that could
// still see them has unpinned.
package epoch
