// Package delivery hands recognized text to the user.
//
// Every destination implements Sink: a file in the output directory, the system
// clipboard, or a clipboard paste into the focused window. Fallback wraps a sink
// and persists the text to a file when the primary destination fails. The
// pipeline depends only on Sink; New picks the implementation at startup.
package delivery
