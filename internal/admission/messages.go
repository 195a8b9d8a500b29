// ABOUTME: Fixed user-facing reply strings for every terminal admission outcome.
// ABOUTME: Raw internal errors are never shown to end users, only logged.

package admission

import "fmt"

const (
	// msgBusy is sent when the user already has a request in flight.
	msgBusy = "I'm still working on your previous request. Please wait a moment!"

	// msgProviderError is sent when the completion provider rejected the call.
	msgProviderError = "Sorry, there was an error communicating with the AI service. Please try again later."

	// msgNetworkError is sent when the provider could not be reached.
	msgNetworkError = "Sorry, I can't connect to the AI service right now. Please try again later."

	// msgInternalError is sent for any other failure, including an
	// unreachable store.
	msgInternalError = "Sorry, an error occurred. Please try again."
)

// quotaExceededMessage renders the daily-limit denial for the configured limit.
func quotaExceededMessage(limit int) string {
	return fmt.Sprintf("You have reached your daily limit of %d queries. Please try again tomorrow.", limit)
}
