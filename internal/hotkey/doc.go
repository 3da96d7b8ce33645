// Package hotkey turns keyboard shortcuts into control events.
// Listeners publish Events on a channel; the global listener registers
// system-wide shortcuts on Windows. ParseCommand maps the single-letter
// commands typed on stdin to the same actions.
package hotkey
