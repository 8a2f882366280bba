package nodes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

func cachedBusiness(name string) *model.EntityContext {
	return &model.EntityContext{
		Type:      model.EntityBusiness,
		Name:      name,
		Timestamp: time.Now(),
	}
}

func TestFastPathEligibleOnExactBusinessMatch(t *testing.T) {
	in := &model.StructuredIntent{
		QueryScope:           model.ScopeSpecificBusiness,
		SpecificBusinessName: "Tim Hortons",
	}
	assert.True(t, IsFastPathEligible(in, cachedBusiness("TIM HORTONS #4521")))
}

func TestFastPathEligibleContainmentEitherDirection(t *testing.T) {
	in := &model.StructuredIntent{
		QueryScope:           model.ScopeSpecificBusiness,
		SpecificBusinessName: "Ridge Meadows Plumbing and Heating",
	}
	assert.True(t, IsFastPathEligible(in, cachedBusiness("ridge meadows plumbing")))
}

func TestFastPathEligibleOnSkipRetrieval(t *testing.T) {
	in := &model.StructuredIntent{QueryKind: model.KindServiceInquiry, SkipRetrieval: true}
	assert.True(t, IsFastPathEligible(in, cachedBusiness("Ace HVAC")))
}

func TestFastPathRejectsMissingOrWrongEntity(t *testing.T) {
	in := &model.StructuredIntent{
		QueryScope:           model.ScopeSpecificBusiness,
		SpecificBusinessName: "Tim Hortons",
	}
	assert.False(t, IsFastPathEligible(in, nil))
	assert.False(t, IsFastPathEligible(in, cachedBusiness("Starbucks")))

	topicEntity := &model.EntityContext{Type: model.EntityTopic, Name: "Tim Hortons"}
	assert.False(t, IsFastPathEligible(in, topicEntity))
}

func TestFastPathRejectsGeneralScope(t *testing.T) {
	in := &model.StructuredIntent{QueryScope: model.ScopeGeneralCategory}
	assert.False(t, IsFastPathEligible(in, cachedBusiness("Tim Hortons")))
}

func TestComputeConfidence(t *testing.T) {
	tests := []struct {
		name    string
		avg     float64
		sources int
		want    model.Confidence
	}{
		{"strong scores and sources", 0.85, 3, model.ConfidenceHigh},
		{"strong score too few sources", 0.85, 2, model.ConfidenceMedium},
		{"weak score enough sources", 0.5, 2, model.ConfidenceMedium},
		{"decent score single source", 0.7, 1, model.ConfidenceMedium},
		{"weak single source", 0.4, 1, model.ConfidenceLow},
		{"nothing retrieved", 0, 0, model.ConfidenceLow},
		{"boundary high needs strictly above 0.8", 0.8, 3, model.ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeConfidence(tt.avg, tt.sources))
		})
	}
}
