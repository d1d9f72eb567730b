// Package reconcile decides which source populates a session and keeps it
// current afterwards.
//
// # Load Precedence
//
// [Engine.Sync] tries the sources strictly in order and applies only the
// first one that yields at least one layer:
//
//  1. The remote record store. For every layer the newest record with
//     Mermaid content is parsed and loaded; layers without records stay
//     empty.
//  2. The local cache blob written by [Engine.PersistToLocalCache]. Every
//     layer present in the blob is loaded as structured data.
//  3. Nothing. All layers stay empty, which is a normal state.
//
// Precedence is whole-session: as soon as the remote store yields one layer,
// the cache is ignored for every layer. Remote failures never reach the
// caller; they are logged and reported in [Result.RemoteErr].
//
// # Push Updates
//
// [Engine.ApplyExternalUpdate] replaces one layer from a push update and
// leaves the others untouched. Updates naming an unknown layer are logged
// and dropped.
//
// # Ordering
//
// Sync reserves a store generation for every layer before it queries any
// source. A push update that commits while the remote query is in flight
// is newer, so the sync result for that layer is discarded rather than
// overwriting it.
package reconcile
