package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEdges(t *testing.T) {
	statuses := []string{"open", "doing", "blocked", "done"}

	t.Run("explicit edges", func(t *testing.T) {
		table := ExpandEdges([]Transition{
			{From: []string{"open"}, To: []string{"doing"}},
			{From: []string{"doing"}, To: []string{"blocked", "done"}},
		}, statuses)

		assert.True(t, table["open"]["doing"])
		assert.True(t, table["doing"]["blocked"])
		assert.True(t, table["doing"]["done"])
		assert.False(t, table["open"]["done"])
		assert.False(t, table["done"]["open"])
	})

	t.Run("wildcard expands minus except and destinations", func(t *testing.T) {
		table := ExpandEdges([]Transition{
			{From: []string{Wildcard}, To: []string{"blocked"}, Except: []string{"done"}},
		}, statuses)

		assert.True(t, table["open"]["blocked"])
		assert.True(t, table["doing"]["blocked"])
		assert.False(t, table["done"]["blocked"], "excepted source must not gain the edge")
		assert.False(t, table["blocked"]["blocked"], "wildcard never introduces self-loops")
	})

	t.Run("self loop must be explicit", func(t *testing.T) {
		table := ExpandEdges([]Transition{
			{From: []string{"doing"}, To: []string{"doing"}},
		}, statuses)
		assert.True(t, table["doing"]["doing"])
	})
}

func TestFromAny(t *testing.T) {
	assert.True(t, Transition{From: []string{"open", Wildcard}}.FromAny())
	assert.False(t, Transition{From: []string{"open"}}.FromAny())
}
