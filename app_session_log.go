package main

import "gamevault/internal/sessionlog"

// GetSessionErrorLog returns a copy of all in-memory session log entries.
// Wails-bound: the frontend calls this after an "app:session-log-updated"
// ping, so it always holds the full snapshot regardless of ping throttling.
func (a *App) GetSessionErrorLog() []sessionlog.Entry {
	entries := a.sessionLog.Snapshot()
	if entries == nil {
		return []sessionlog.Entry{}
	}
	return entries
}

// GetSessionLogFilePath returns the absolute path to the current session's
// JSONL log file, or "" when file persistence is unavailable.
func (a *App) GetSessionLogFilePath() string {
	return a.sessionLog.Path()
}
