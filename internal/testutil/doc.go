// Package testutil provides deterministic fakes for recorder tests: a
// scriptable target context and frame, a snapshot collaborator, and a fixed
// correlation id generator.
package testutil
