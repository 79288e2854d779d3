// Package memory contains the concrete MemoryStore implementation. The store
// interface and entry types reside in the core package. Depend on
// core.MemoryStore in your code and select an implementation at wiring time.
//
// Manager keeps bounded per-session and per-user indices in process. A
// Journal (see the badgerstore subpackage) can be attached for write-through
// durability; Restore replays it at startup.
package memory
