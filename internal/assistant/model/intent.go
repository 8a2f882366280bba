package model

// QueryKind is the coarse kind of request a query represents.
type QueryKind string

const (
	KindBusinessDirectory  QueryKind = "business_directory"
	KindBylaw              QueryKind = "bylaw"
	KindFinancial          QueryKind = "financial"
	KindServiceInquiry     QueryKind = "service_inquiry"
	KindClarificationNeed  QueryKind = "clarification_needed"
	KindMunicipalProcedure QueryKind = "municipal_procedure"
	KindRecreation         QueryKind = "recreation"
)

// ConversationFlow describes how the query relates to the conversation so far.
type ConversationFlow string

const (
	FlowNewTopic      ConversationFlow = "new_topic"
	FlowFollowup      ConversationFlow = "followup"
	FlowClarification ConversationFlow = "clarification"
)

// QueryScope describes how narrowly the query targets a single entity.
type QueryScope string

const (
	ScopeSpecificBusiness QueryScope = "specific_business"
	ScopeGeneralCategory  QueryScope = "general_category"
	ScopeInformation      QueryScope = "information"
)

// StructuredIntent is the normalized representation of one user query.
// Pure value; not persisted beyond a turn except via EntityContext derivatives.
type StructuredIntent struct {
	Keywords             []string         `json:"keywords"`
	Intent               string           `json:"intent"`
	QueryKind            QueryKind        `json:"query_kind"`
	SearchTerms          string           `json:"search_terms"`
	CategoryHints        []string         `json:"category_hints,omitempty"`
	ConversationContext  ConversationFlow `json:"conversation_context"`
	QueryScope           QueryScope       `json:"query_scope"`
	SpecificBusinessName string           `json:"specific_business_name,omitempty"`
	Topic                string           `json:"topic,omitempty"`
	IsMultiQuestion      bool             `json:"is_multi_question,omitempty"`
	SubQuestions         []string         `json:"sub_questions,omitempty"`
	NeedsClarification   bool             `json:"needs_clarification,omitempty"`
	ClarificationPrompt  string           `json:"clarification_prompt,omitempty"`
	SkipRetrieval        bool             `json:"skip_retrieval,omitempty"`
}

// QueryInput is the public input for one pipeline invocation. Depth is zero
// for user-issued queries and one for fanned-out sub-questions.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	Depth          int    `json:"depth,omitempty"`
}

// Confidence grades how well-grounded an answer is in retrieved sources.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// WeakerConfidence returns the lower of two confidence grades, used when
// merging fanned-out sub-answers.
func WeakerConfidence(a, b Confidence) Confidence {
	rank := map[Confidence]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}
	if rank[a] <= rank[b] {
		return a
	}
	return b
}

// Answer is the coordinator's result for one user query.
type Answer struct {
	Text           string     `json:"text"`
	Confidence     Confidence `json:"confidence"`
	Sources        []string   `json:"sources,omitempty"`
	AskedQuestion  bool       `json:"asked_question,omitempty"`
	ConversationID string     `json:"conversation_id"`
}
