package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveExactTitle(t *testing.T) {
	url, ok := Resolve("Animal Control Bylaw")
	assert.True(t, ok)
	assert.Equal(t, "https://www.mapleridge.ca/bylaws/animal-control", url)
}

func TestResolveContainedTitle(t *testing.T) {
	url, ok := Resolve("Noise  Control Bylaw No. 5122-1994, Consolidated")
	assert.True(t, ok)
	assert.Equal(t, "https://www.mapleridge.ca/bylaws/noise-control", url)
}

func TestResolveUnknownTitle(t *testing.T) {
	_, ok := Resolve("Council Meeting Minutes 2024-03-12")
	assert.False(t, ok)
}
