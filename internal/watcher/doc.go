// Package watcher defines the capture-source contract of the recorder.
//
// A Watcher is built by a Factory from Args. During construction it
// subscribes to events on its target Context, and for every subscription it
// registers exactly one inverse unsubscription in the shared Teardown set.
// Records leave a watcher only through Args.Emit, normally via
// Base.EmitData.
//
// The target document itself is external. The recorder consumes it through
// the Context and Frame interfaces, and consumes the structural snapshot
// representation through Snapshotter.
package watcher
