package cli

import (
	"github.com/pkoukk/tiktoken-go"

	repomap "github.com/repomapper/repomapper"
)

// defaultEncoding is used when modelName is empty or tiktoken has no
// encoding registered for it.
const defaultEncoding = "cl100k_base"

// newTokenCounter resolves a BPE token counter for modelName, falling back
// to defaultEncoding the same way cpe's countTokens resolves per-model
// encodings.
func newTokenCounter(modelName string) (repomap.TokenCounter, error) {
	var tkm *tiktoken.Tiktoken
	var err error

	if modelName != "" {
		tkm, err = tiktoken.EncodingForModel(modelName)
	}
	if modelName == "" || err != nil {
		tkm, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
	}

	return func(text string) int {
		return len(tkm.Encode(text, nil, nil))
	}, nil
}
