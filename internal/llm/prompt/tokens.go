package prompt

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator approximates prompt sizes with the cl100k_base encoding.
// Counts are estimates: the served model uses its own vocabulary.
type Estimator struct {
	codec tokenizer.Codec
}

// NewEstimator loads the cl100k_base codec.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the estimated number of tokens in text.
// A nil Estimator, or a text the codec rejects, falls back to
// one token per four bytes.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e == nil || e.codec == nil {
		return roughCount(text)
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return roughCount(text)
	}
	return len(ids)
}

func roughCount(text string) int {
	return (len(text) + 3) / 4
}
