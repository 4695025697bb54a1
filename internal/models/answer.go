package models

import "time"

// Mode names a retrieval strategy.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

// Completion is one language model round trip.
type Completion struct {
	Text             string
	TotalTokens      int
	PromptTokens     int
	CompletionTokens int
	Elapsed          time.Duration
}

// Answer is the result of one RAG pipeline call. Not persisted.
type Answer struct {
	Mode             Mode              `json:"mode"`
	Response         string            `json:"response"`
	TotalTokens      int               `json:"total_tokens"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	Elapsed          time.Duration     `json:"elapsed"`
	EstimatedCost    float64           `json:"estimated_cost"`
	Context          string            `json:"context,omitempty"`
	ImagePaths       []string          `json:"image_paths,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
	Sources          []Record          `json:"-"`
}

// Comparison holds both modes' answers for one query.
type Comparison struct {
	Model string  `json:"model"`
	Query string  `json:"query"`
	Text  *Answer `json:"text"`
	Image *Answer `json:"image"`
}
