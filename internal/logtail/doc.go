// Package logtail reads the tail of dashsync's own log file for display in
// the TUI.
//
// # Reading Log Files
//
// Read extracts the last maxLines from a file with a ring buffer, so memory
// use is O(maxLines) no matter how large the file has grown:
//
//	1. Allocate ring buffer of size maxLines
//	2. For each line in file:
//	   - Store line at current index
//	   - Increment index (wrapping at maxLines)
//	   - Track total lines seen
//	3. Return the buffer starting from the oldest line
//
// A missing file is not an error; the log is created lazily on first write.
//
// # Entries
//
// dashsync logs JSON through slog, one object per line. Parse pulls out
// time, level and msg and keeps every other key as a sorted Attr. Anything
// that is not a JSON object (a panic trace, a truncated write) is kept
// verbatim in Raw so nothing is hidden from the log pane.
package logtail
