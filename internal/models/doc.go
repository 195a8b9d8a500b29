// Package models holds the ordered model registry and per-user model
// preference resolution. The registry is loaded once at startup and never
// mutated; its first entry is the system default model.
package models
