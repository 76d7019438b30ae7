package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryRequest is the body of a question-answering request.
type QueryRequest struct {
	Question      string `json:"question"`
	ReturnContext bool   `json:"return_context"`
}

// Validate trims the question and rejects it when empty.
func (q *QueryRequest) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty: %w", ErrValidation)
	}
	return nil
}

// QueryResult is one retrieval hit. Results are always handled in
// descending-score order.
type QueryResult struct {
	ID       int64    `json:"id"`
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Source is the caller-facing view of a result: text, score, and every other
// metadata field.
type Source struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Source converts the result for a query response.
func (r *QueryResult) Source() Source {
	fields := r.Metadata.Fields()
	delete(fields, metaKeyText)
	delete(fields, "score")
	return Source{Text: r.Text, Score: r.Score, Metadata: fields}
}

// QueryResponse is the answer to a QueryRequest. Context and Sources are
// serialized only when IncludeContext is set.
type QueryResponse struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Context        string   `json:"context"`
	Sources        []Source `json:"sources"`
	IncludeContext bool     `json:"-"`
}

// MarshalJSON omits context and sources unless they were requested.
func (r QueryResponse) MarshalJSON() ([]byte, error) {
	if !r.IncludeContext {
		return json.Marshal(struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}{r.Question, r.Answer})
	}
	sources := r.Sources
	if sources == nil {
		sources = []Source{}
	}
	return json.Marshal(struct {
		Question string   `json:"question"`
		Answer   string   `json:"answer"`
		Context  string   `json:"context"`
		Sources  []Source `json:"sources"`
	}{r.Question, r.Answer, r.Context, sources})
}

// UnmarshalJSON accepts both shapes written by MarshalJSON.
func (r *QueryResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question string    `json:"question"`
		Answer   string    `json:"answer"`
		Context  *string   `json:"context"`
		Sources  *[]Source `json:"sources"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = QueryResponse{Question: raw.Question, Answer: raw.Answer}
	if raw.Context != nil {
		r.Context = *raw.Context
		r.IncludeContext = true
	}
	if raw.Sources != nil {
		r.Sources = *raw.Sources
		r.IncludeContext = true
	}
	return nil
}
