package summarize

import (
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// EstimateTokens approximates the prompt tokens a full summarization of chunks
// sends under model, excluding the growing summary. Models unknown to the
// tokenizer use cl100k_base.
func EstimateTokens(model string, chunks [][]string) int {
	enc, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
	}
	count := func(text string) int {
		if err == nil {
			if n, cerr := enc.Count(text); cerr == nil {
				return n
			}
		}
		return len(text) / 4
	}

	fixed := count(systemPrompt + "\n" + updateInstruction + "\n" + summaryPrefix + partPrefix)
	total := 0
	for _, chunk := range chunks {
		total += fixed + count(strings.Join(chunk, " "))
	}
	return total
}
