package models

// FetchRequest is one logical scrape request flowing through the
// scheduler and retry controller. The request deadline travels as a
// context deadline, not request state.
type FetchRequest struct {
	CorrelationID string
	Site          string
	URL           string
	Key           string
	MaxAttempts   int
}
