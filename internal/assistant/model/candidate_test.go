package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesPrefixIDsByKind(t *testing.T) {
	rag := &RAGContext{
		Businesses: []ScoredBusiness{{ID: "7", Name: "Ace HVAC", Score: 0.9}},
		Documents:  []ScoredDocument{{ID: "7", Title: "Business Licence Bylaw", Score: 0.8}},
	}

	cands := rag.Candidates()
	require.Len(t, cands, 2)
	assert.Equal(t, "biz:7", cands[0].ID)
	assert.Equal(t, "doc:7", cands[1].ID)
}

func TestKeepDistinguishesCollidingIDs(t *testing.T) {
	// A business and a document can share a raw id across their tables;
	// selecting one must never drag in the other.
	rag := &RAGContext{
		Businesses: []ScoredBusiness{{ID: "7", Name: "Ace HVAC", Score: 0.9}},
		Documents:  []ScoredDocument{{ID: "7", Title: "Business Licence Bylaw", Score: 0.8}},
	}

	kept := rag.Keep([]string{"doc:7"})
	require.Len(t, kept.Documents, 1)
	assert.Empty(t, kept.Businesses)
	assert.Equal(t, "Business Licence Bylaw", kept.Documents[0].Title)
}

func TestKeepPreservesSelectionOrder(t *testing.T) {
	rag := &RAGContext{
		Businesses: []ScoredBusiness{
			{ID: "b1", Name: "First", Score: 0.9},
			{ID: "b2", Name: "Second", Score: 0.7},
		},
	}

	kept := rag.Keep([]string{"biz:b2", "biz:b1"})
	require.Len(t, kept.Businesses, 2)
	assert.Equal(t, "Second", kept.Businesses[0].Name)
	assert.Equal(t, "First", kept.Businesses[1].Name)

	// Unknown and unprefixed ids are ignored.
	assert.Equal(t, 0, rag.Keep([]string{"b1", "doc:b1", "biz:nope"}).SourceCount())
}
