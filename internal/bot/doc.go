// Package bot wires the aplmint components together and owns their
// lifecycle: the SQLite store, the per-user gate, the admission controller,
// the Telegram bridge, and the health/metrics HTTP server.
package bot
