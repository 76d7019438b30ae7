package embedding

// Pooling strategies for ONNX model outputs.
const (
	PoolingMean = "mean"
	PoolingNone = "none"
)

// ONNXConfig describes an exported transformer model.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// OutputName is the model output to read, usually "last_hidden_state"
	// (shape [1, tokens, dims]) or a pooled "sentence_embedding" ([1, dims]).
	OutputName string
	// Pooling is PoolingMean for token-level outputs and PoolingNone for pooled ones.
	Pooling string
	// TokenTypeIDs feeds a token_type_ids input; MPNet and XLM-R exports have none.
	TokenTypeIDs bool
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.OutputName == "" {
		c.OutputName = "last_hidden_state"
	}
	if c.Pooling == "" {
		c.Pooling = PoolingMean
	}
	return c
}

// meanPool averages token vectors where mask is set. hidden is row-major
// [tokens, dims].
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dims : (t+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
