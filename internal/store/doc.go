// Package store implements the experience store: a persistent record of
// move evaluations keyed by position fingerprint.
//
// File Format:
//   - Signature: the ASCII tag "CGEXP1"
//   - Records: any number of fixed 24-byte little-endian records
//     (key, move, value, depth, reserved)
//
// A file whose payload is not a whole number of records is rejected.
//
// In Memory:
//   - Index: fingerprint -> chain of candidate moves, best first, one node per move
//   - PV / MultiPV buffers: new results appended to the file by the next
//     incremental save
//
// Key Features:
//   - Loads run on a background goroutine and can be aborted by Close
//   - Full saves rewrite the file behind a .bak backup that is restored on failure
//   - Defrag and Merge compact and combine files through a throwaway Store
package store
