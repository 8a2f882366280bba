package contextbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksGreedyAccumulation(t *testing.T) {
	text := strings.Join([]string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}, "\n\n")

	chunks := splitChunks(text, 90)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], strings.Repeat("a", 40))
	assert.Contains(t, chunks[0], strings.Repeat("b", 40))
	assert.Contains(t, chunks[1], strings.Repeat("c", 40))
}

func TestSplitChunksOversizedParagraphStandsAlone(t *testing.T) {
	big := strings.Repeat("x", 500)
	chunks := splitChunks("small\n\n"+big+"\n\nsmall again", 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, big, chunks[1])
}

func TestScoreChunkWeights(t *testing.T) {
	keywords := []string{"licence", "kennel"}

	plain := "General definitions apply throughout this bylaw."
	fee := "The annual kennel licence fee is $250 and a penalty applies after March."

	plainScore := scoreChunk(plain, keywords, 5)
	feeScore := scoreChunk(fee, keywords, 5)

	// kennel + licence keywords, currency marker, procedural marker ("applies").
	assert.Equal(t, 10+10+20+15, feeScore)
	assert.Greater(t, feeScore, plainScore)
}

func TestScoreChunkLeadBonus(t *testing.T) {
	c := "nothing notable"
	assert.Equal(t, 5, scoreChunk(c, nil, 0))
	assert.Equal(t, 5, scoreChunk(c, nil, 2))
	assert.Equal(t, 0, scoreChunk(c, nil, 3))
}

func TestSelectChunksRankingOrder(t *testing.T) {
	paras := []string{
		"Introductory boilerplate without useful content.",
		"Filler section one.",
		"Filler section two.",
		"Filler section three.",
		"Dog licence fees: $30 annually, payable at city hall.",
		"To apply, submit the licence application form in person.",
	}
	text := strings.Join(paras, "\n\n")

	got := selectChunks(text, "dog licence application", 40, 2)
	parts := strings.Split(got, "\n\n---\n\n")

	require.Len(t, parts, 2)
	// The application paragraph outranks the fee paragraph on keyword hits.
	assert.Contains(t, parts[0], "submit the licence application")
	assert.Contains(t, parts[1], "$30 annually")
}

func TestChunkKeywords(t *testing.T) {
	got := chunkKeywords("How much is a DOG licence? dog fee")
	assert.Equal(t, []string{"licence"}, got)
}
