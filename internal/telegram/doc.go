// Package telegram is the transport bridge between the Telegram Bot API
// and the admission controller. It owns update polling, command handling,
// the model selection keyboard, and reply rendering; all admission
// decisions live in the admission package.
package telegram
