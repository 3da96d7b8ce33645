// Package app is the command and control shell. It runs the url, file,
// continuous, record and listen modes, either directly or from the
// interactive menu, and maps hotkey and terminal commands onto them.
package app
