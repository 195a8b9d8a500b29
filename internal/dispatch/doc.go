// Package dispatch issues single completion calls to the OpenRouter API.
//
// Failures are classified into ErrProviderRejected (non-success status),
// ErrNetworkUnreachable (transport failure), or an unclassified error
// (malformed response). No failure is retried; retry policy, if any,
// belongs to a higher layer.
package dispatch
