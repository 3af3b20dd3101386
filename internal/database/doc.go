// Package database provides SQLite-based storage for run history.
//
// HistoryDB keeps one row per run of the suite against a target. The full
// run report is stored as zstd-compressed JSON next to a small summary
// (check and violation counts) so that listing history does not need to
// decode every report. The compare command loads two reports from here and
// diffs their violation fingerprints.
//
// The database is a single file under the XDG data directory, opened with
// modernc.org/sqlite so no cgo toolchain is required.
package database
