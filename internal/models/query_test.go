package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *QueryRequest
		wantErr bool
	}{
		{"empty question", &QueryRequest{Question: ""}, true},
		{"whitespace only", &QueryRequest{Question: " \n\t "}, true},
		{"valid question", &QueryRequest{Question: "ما هو الصبر؟"}, false},
		{"trims surrounding space", &QueryRequest{Question: "  سؤال  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if tt.name == "trims surrounding space" && tt.req.Question != "سؤال" {
				t.Errorf("question not trimmed: %q", tt.req.Question)
			}
		})
	}
}

func TestQueryResult_Source(t *testing.T) {
	r := &QueryResult{
		ID:    7,
		Text:  "نص",
		Score: 0.8,
		Metadata: Metadata{
			ID:     7,
			Text:   "نص",
			Source: "book",
			Extra:  map[string]any{"chunk_index": 2},
		},
	}
	src := r.Source()
	if src.Text != "نص" || src.Score != 0.8 {
		t.Errorf("unexpected text/score: %+v", src)
	}
	if _, ok := src.Metadata["text"]; ok {
		t.Error("text must not be repeated in source metadata")
	}
	if src.Metadata["source"] != "book" || src.Metadata["chunk_index"] != 2 || src.Metadata["id"] != int64(7) {
		t.Errorf("unexpected metadata: %v", src.Metadata)
	}
}

func TestQueryResponse_MarshalJSON(t *testing.T) {
	without, err := json.Marshal(QueryResponse{Question: "q", Answer: "a", Context: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if string(without) != `{"question":"q","answer":"a"}` {
		t.Errorf("got %s", without)
	}

	with, err := json.Marshal(QueryResponse{Question: "q", Answer: "a", IncludeContext: true})
	if err != nil {
		t.Fatal(err)
	}
	if string(with) != `{"question":"q","answer":"a","context":"","sources":[]}` {
		t.Errorf("got %s", with)
	}

	var back QueryResponse
	if err := json.Unmarshal(with, &back); err != nil {
		t.Fatal(err)
	}
	if !back.IncludeContext {
		t.Error("IncludeContext should be restored when context is present")
	}
}

func TestMetadata_JSONFlattensExtra(t *testing.T) {
	m := Metadata{ID: 3, Text: "t", Source: "s", Extra: map[string]any{"chunk_index": 1}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"chunk_index":1,"id":3,"source":"s","text":"t"}` {
		t.Errorf("got %s", data)
	}
	var back Metadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != 3 || back.Text != "t" || back.Source != "s" {
		t.Errorf("core fields lost: %+v", back)
	}
	if back.Extra["chunk_index"] != float64(1) {
		t.Errorf("extra lost: %v", back.Extra)
	}
}

func TestMetadata_UnmarshalRejectsBadCore(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"id":"zero"}`), &m); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
