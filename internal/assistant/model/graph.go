package model

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Session mutations are NOT performed from state handlers; the runner
//     commits them once per user query after all sub-answers return.
type AppState struct {
	ConversationID string
	Query          string
	Depth          int

	Snapshot SessionSnapshot   // session state captured before decomposition
	Intent   *StructuredIntent // set by the decomposer post-handler
	RAG      *RAGContext       // filtered candidate set for this pass
	Context  string            // assembled textual context for generation

	Confidence     Confidence
	BestEntity     *EntityContext
	RetrievedNames []string
	AskedQuestion  bool

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// ResponseData holds the graph-state fields the assembler needs in one read.
type ResponseData struct {
	Intent         StructuredIntent
	Snapshot       SessionSnapshot
	Context        string
	ConversationID string
}
