package agent

import (
	"strings"

	"github.com/google/uuid"

	"github.com/aarchijain1/custom-rag-engine/internal/store"
)

// Route is the classification outcome for a question.
type Route int

const (
	// RouteRAG retrieves document context before answering. It is the
	// fail-safe default: retrieval grounds the answer, so ambiguity and
	// classifier failures both land here.
	RouteRAG Route = iota
	// RouteDirect answers from the model alone.
	RouteDirect
)

func (r Route) String() string {
	if r == RouteDirect {
		return "direct"
	}
	return "rag"
}

// ParseRoute normalizes free-text classifier output into a Route. Model
// output arrives with unpredictable casing and punctuation; anything that
// does not clearly say "direct" routes to retrieval.
func ParseRoute(s string) Route {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	cleaned = strings.Trim(cleaned, ".!?'\"` ")
	if cleaned == "direct" {
		return RouteDirect
	}
	return RouteRAG
}

// QueryState is the per-request record threaded through the routing steps.
// It is created at request start, owned by a single flow, and discarded
// once the response is returned; nothing survives across requests.
type QueryState struct {
	ID          string
	Question    string
	UseRAG      bool
	Retrieved   []store.SearchResult
	FinalAnswer string
	Sources     []string
	Err         string
}

func newQueryState(question string) *QueryState {
	return &QueryState{
		ID:       uuid.NewString(),
		Question: question,
	}
}

// Result is what the caller gets back. Err carries any recovered internal
// failure for diagnostics; the Answer is always populated regardless.
type Result struct {
	Answer       string   `json:"answer"`
	UsedRAG      bool     `json:"used_rag"`
	NumDocuments int      `json:"num_documents"`
	Sources      []string `json:"sources,omitempty"`
	Err          string   `json:"error,omitempty"`
}
