package agent

import (
	"context"
	"fmt"
	"strings"
)

const classificationPrompt = `You are a query classifier. Analyze the user query and decide:

User Query: %q

Should this query be answered using:
A) RAG (document search) - for factual questions about specific topics in documents
B) DIRECT - for general knowledge, greetings, simple questions, or conversational queries

Consider:
- Use RAG for: "What does the document say about X?", "Find information on Y", technical questions
- Use DIRECT for: "Hello", "How are you?", "What is 2+2?", general knowledge questions

Respond with ONLY one word: 'RAG' or 'DIRECT'`

// Classifier decides whether a question needs document retrieval.
type Classifier interface {
	Classify(ctx context.Context, question string) (Route, error)
}

// LLMClassifier asks the generation model to pick a route.
type LLMClassifier struct {
	gen Generator
}

// NewLLMClassifier wraps a generator as a classifier.
func NewLLMClassifier(gen Generator) *LLMClassifier {
	return &LLMClassifier{gen: gen}
}

func (c *LLMClassifier) Classify(ctx context.Context, question string) (Route, error) {
	out, err := c.gen.Generate(ctx, fmt.Sprintf(classificationPrompt, question))
	if err != nil {
		return RouteRAG, fmt.Errorf("classification: %w", err)
	}
	return ParseRoute(out), nil
}

// defaultKeywords mark questions that smell like document lookups.
var defaultKeywords = []string{
	"document", "file", "policy", "according to",
	"what does", "where is", "explain", "describe", "how do",
}

// KeywordClassifier is the purely local alternative: a question routes to
// retrieval iff it contains any keyword. No external call, no failure mode.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier builds a keyword classifier; an empty keyword list
// falls back to the defaults.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	return &KeywordClassifier{keywords: keywords}
}

func (c *KeywordClassifier) Classify(_ context.Context, question string) (Route, error) {
	q := strings.ToLower(question)
	for _, kw := range c.keywords {
		if strings.Contains(q, kw) {
			return RouteRAG, nil
		}
	}
	return RouteDirect, nil
}
