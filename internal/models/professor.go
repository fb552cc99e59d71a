package models

// Message is one caller-supplied conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievedMatch is a professor record returned by the vector store, in rank order.
type RetrievedMatch struct {
	Professor  string  `json:"professor"`
	Subject    string  `json:"subject"`
	StarRating float64 `json:"starRating"`
	Review     string  `json:"review"`
	Score      float32 `json:"score"`
}

// ProfessorReview is a single seed record, in the shape of the reviews dataset.
type ProfessorReview struct {
	Professor string  `json:"professor"`
	Subject   string  `json:"subject"`
	Stars     float64 `json:"stars"`
	Review    string  `json:"review"`
}

// ReviewEmbedding pairs a review with its vector for upserting.
type ReviewEmbedding struct {
	ProfessorReview
	Embedding []float32
}
