package engine

import (
	"fmt"
	"regexp"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// SplitTokenizerName is the registry type of the separator-pattern tokenizer.
const SplitTokenizerName = "resourcesearch_split"

func init() {
	_ = registry.RegisterTokenizer(SplitTokenizerName, splitTokenizerConstructor)
}

// splitTokenizerConstructor builds a tokenizer from config["pattern"].
func splitTokenizerConstructor(config map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	pattern, ok := config["pattern"].(string)
	if !ok || pattern == "" {
		return nil, fmt.Errorf("tokenizer %s requires a pattern", SplitTokenizerName)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenize pattern %q: %w", pattern, err)
	}
	return &patternTokenizer{separator: re}, nil
}

// patternTokenizer emits the non-empty runs of text between separator matches.
type patternTokenizer struct {
	separator *regexp.Regexp
}

// Tokenize implements analysis.Tokenizer.
func (t *patternTokenizer) Tokenize(input []byte) analysis.TokenStream {
	stream := make(analysis.TokenStream, 0)
	pos := 1
	start := 0

	emit := func(end int) {
		if end <= start {
			return
		}
		stream = append(stream, &analysis.Token{
			Term:     input[start:end],
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
	}

	for _, loc := range t.separator.FindAllIndex(input, -1) {
		emit(loc[0])
		if loc[1] > start {
			start = loc[1]
		}
	}
	emit(len(input))

	return stream
}

// splitTokens splits s the same way the tokenizer does.
func splitTokens(separator *regexp.Regexp, s string) []string {
	var tokens []string
	for _, tok := range separator.Split(s, -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
