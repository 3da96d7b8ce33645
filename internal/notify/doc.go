// Package notify shows desktop notifications for state changes.
package notify
