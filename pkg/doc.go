// Package pkg provides the core libraries for dagplanner, a four-layer DAG
// planning store.
//
// # Overview
//
// dagplanner keeps one directed graph per planning layer (function, logic,
// code and order). Layers are written as Mermaid flowcharts or structured
// node/edge JSON, kept in an in-memory store, persisted to a local cache,
// saved as records on a record server, and pushed live to every watching
// session. The pkg directory is organized into four areas:
//
//  1. Domain - [dag], [mermaid], [store], [stats] and [notify]
//  2. Sync - [reconcile], [remote], [cache] and [push]
//  3. Records - [records], [server] and [mcptools]
//  4. Support - [config], [projects], [render], [observability], [errors],
//     [httputil] and [buildinfo]
//
// # Architecture
//
// The typical data flow:
//
//	Mermaid text / structured JSON
//	         ↓
//	    [mermaid] package (parse flowchart text into a dag.Graph)
//	         ↓
//	    [store] package (one snapshot per layer, change notifications)
//	         ↓
//	    [reconcile] package (sync from record server, then local cache)
//	         ↓
//	    JSON / composite Mermaid export, DOT and SVG rendering
//
// Record servers broadcast every saved layer over Server-Sent Events; a
// session follows them with [push.Subscriber] and applies each update with
// [reconcile.Engine.Run].
//
// # Quick Start
//
// Load a layer and export the session:
//
//	import (
//	    "github.com/matzehuels/dagplanner/pkg/dag"
//	    "github.com/matzehuels/dagplanner/pkg/store"
//	)
//
//	st := store.New()
//	if err := st.LoadLayer(dag.LayerFunction, store.Mermaid("A --> B")); err != nil {
//	    return err
//	}
//	data, _ := st.ExportAll(store.FormatMermaid)
//
// Sync a session from a record server, falling back to the local cache:
//
//	client, _ := remote.NewClient("http://localhost:8080")
//	fc, _ := cache.NewFileCache(dir)
//	engine := reconcile.New(store.New(), client, fc)
//	res := engine.Sync(ctx)
//
// # Error Handling
//
// Operations return structured errors from [errors] carrying a code such as
// INVALID_LAYER or UNSUPPORTED_INPUT. Use errors.Is with a code, or
// errors.GetCode, to branch on them.
//
// [dag]: github.com/matzehuels/dagplanner/pkg/dag
// [mermaid]: github.com/matzehuels/dagplanner/pkg/mermaid
// [store]: github.com/matzehuels/dagplanner/pkg/store
// [stats]: github.com/matzehuels/dagplanner/pkg/stats
// [notify]: github.com/matzehuels/dagplanner/pkg/notify
// [reconcile]: github.com/matzehuels/dagplanner/pkg/reconcile
// [reconcile.Engine.Run]: github.com/matzehuels/dagplanner/pkg/reconcile#Engine.Run
// [remote]: github.com/matzehuels/dagplanner/pkg/remote
// [cache]: github.com/matzehuels/dagplanner/pkg/cache
// [push]: github.com/matzehuels/dagplanner/pkg/push
// [push.Subscriber]: github.com/matzehuels/dagplanner/pkg/push#Subscriber
// [records]: github.com/matzehuels/dagplanner/pkg/records
// [server]: github.com/matzehuels/dagplanner/pkg/server
// [mcptools]: github.com/matzehuels/dagplanner/pkg/mcptools
// [config]: github.com/matzehuels/dagplanner/pkg/config
// [projects]: github.com/matzehuels/dagplanner/pkg/projects
// [render]: github.com/matzehuels/dagplanner/pkg/render
// [observability]: github.com/matzehuels/dagplanner/pkg/observability
// [errors]: github.com/matzehuels/dagplanner/pkg/errors
// [httputil]: github.com/matzehuels/dagplanner/pkg/httputil
// [buildinfo]: github.com/matzehuels/dagplanner/pkg/buildinfo
package pkg
