package domain

// Topics for inter-stage event delivery.
const (
	TopicReviewCreated = "review.created"
	TopicReviewDrafted = "review.drafted"
)

// ReviewCreated carries the full normalized review so the generation stage
// needs no extra read to build its prompt.
type ReviewCreated struct {
	Review Review
}

// ReviewDrafted tells the notification stage which draft to put in front of
// the operator.
type ReviewDrafted struct {
	ReviewID string
	DraftID  string
}
