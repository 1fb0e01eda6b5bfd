// Package ir provides the record model shared by every TimeCat package.
//
// This package contains type definitions and the canonical JSON encoder only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Record.Data is an opaque JSON payload; the core never interprets it
//     beyond the HEAD/SNAPSHOT/surface shapes defined here
//   - Record.Time is epoch milliseconds and never decreases within a session
//   - Record.ID is assigned by the store on commit and is zero before that
//   - JSON tags follow the recorder wire shape (camelCase relatedId)
package ir
