// Package reminder sends pre-event reminders for confirmed sessions.
// It wakes on a fixed interval, finds confirmed sessions whose chosen time
// is 14, 7 or 3 days away, and posts at most one reminder per offset.
package reminder
