// Package agent routes questions through classify -> retrieve -> answer.
// Every failure along the way degrades to a safer path instead of failing
// the request: classification errors fall back to retrieval, retrieval
// errors fall back to a direct answer, and generation errors become a
// user-visible apology. The caller always gets a textual answer.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aarchijain1/custom-rag-engine/internal/store"
)

const ragAnswerPrompt = `You are a helpful assistant. Answer the user's question based ONLY on the provided context.

Context from documents:
%s

User Question: %s

Instructions:
- Use ONLY information from the context above
- If the context doesn't contain relevant information, clearly state that
- Be concise and accurate
- Cite specific parts of the context when relevant

Answer:`

const directAnswerPrompt = `You are a helpful assistant. Answer the user's question naturally.

User Question: %s

Provide a clear, concise, and helpful answer.`

// noRelevantDocs is returned when retrieval matched chunks but none carry
// usable content; it is never an empty string or a hallucinated answer.
const noRelevantDocs = "No relevant documents found."

// Generator is the external generation capability. It is not assumed to
// be deterministic.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever reaches the retrieval store, typically over the transport
// client.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]store.SearchResult, error)
}

// Agent is the query-routing state machine. It is stateless across
// requests; each Query gets its own QueryState.
type Agent struct {
	classifier Classifier
	retriever  Retriever
	gen        Generator
	k          int
	logger     *zap.Logger
}

// New wires an agent from its collaborators. k is how many chunks a
// retrieval requests.
func New(classifier Classifier, retriever Retriever, gen Generator, k int, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if k <= 0 {
		k = 3
	}
	return &Agent{classifier: classifier, retriever: retriever, gen: gen, k: k, logger: logger}
}

// Query answers a question. Steps run strictly in order: classify, then
// retrieve (when routed there), then exactly one answer mode.
func (a *Agent) Query(ctx context.Context, question string) Result {
	state := newQueryState(question)
	log := a.logger.With(zap.String("query_id", state.ID))

	a.classify(ctx, state, log)
	if state.UseRAG {
		a.retrieve(ctx, state, log)
	}
	if state.UseRAG && len(state.Retrieved) > 0 {
		a.answerWithContext(ctx, state, log)
	} else {
		a.answerDirect(ctx, state, log)
	}

	return Result{
		Answer:       state.FinalAnswer,
		UsedRAG:      state.UseRAG,
		NumDocuments: len(state.Retrieved),
		Sources:      state.Sources,
		Err:          state.Err,
	}
}

func (a *Agent) classify(ctx context.Context, state *QueryState, log *zap.Logger) {
	route, err := a.classifier.Classify(ctx, state.Question)
	if err != nil {
		// Fail-safe: retrieval grounds the answer, so a broken classifier
		// must not push us to an ungrounded one.
		log.Warn("classification failed, defaulting to retrieval", zap.Error(err))
		state.UseRAG = true
		return
	}
	state.UseRAG = route == RouteRAG
	log.Debug("classified", zap.Stringer("route", route))
}

func (a *Agent) retrieve(ctx context.Context, state *QueryState, log *zap.Logger) {
	results, err := a.retriever.Search(ctx, state.Question, a.k)
	if err != nil {
		// Retrieval being unavailable is treated the same as retrieval
		// finding nothing; the request still moves forward.
		log.Warn("retrieval failed, continuing without context", zap.Error(err))
		state.Err = err.Error()
		state.Retrieved = nil
		return
	}
	state.Retrieved = results
	log.Debug("retrieved", zap.Int("chunks", len(results)))
}

func (a *Agent) answerWithContext(ctx context.Context, state *QueryState, log *zap.Logger) {
	var blocks []string
	for _, r := range state.Retrieved {
		if content := strings.TrimSpace(r.Content); content != "" {
			blocks = append(blocks, content)
		}
	}
	if len(blocks) == 0 {
		state.FinalAnswer = noRelevantDocs
		return
	}

	state.Sources = collectSources(state.Retrieved)

	prompt := fmt.Sprintf(ragAnswerPrompt, strings.Join(blocks, "\n\n---\n\n"), state.Question)
	answer, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		log.Error("answer generation failed", zap.Error(err))
		state.Err = err.Error()
		state.FinalAnswer = "I could not generate an answer from the retrieved documents. Please try again."
		return
	}
	state.FinalAnswer = strings.TrimSpace(answer)

	if len(state.Sources) > 0 {
		state.FinalAnswer += "\n\nSources:\n" + strings.Join(state.Sources, "\n")
	}
}

func (a *Agent) answerDirect(ctx context.Context, state *QueryState, log *zap.Logger) {
	answer, err := a.gen.Generate(ctx, fmt.Sprintf(directAnswerPrompt, state.Question))
	if err != nil {
		log.Error("direct answer failed", zap.Error(err))
		state.Err = err.Error()
		state.FinalAnswer = "I could not retrieve information or generate an answer right now. Please try again."
		return
	}
	state.FinalAnswer = strings.TrimSpace(answer)
}

// collectSources pulls unique http(s) URLs out of chunk metadata. The
// result is sorted so it does not depend on retrieval order.
func collectSources(results []store.SearchResult) []string {
	seen := make(map[string]bool)
	for _, r := range results {
		for _, key := range []string{"url", "source"} {
			v, ok := r.Metadata[key].(string)
			if ok && strings.HasPrefix(v, "http") {
				seen[v] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
