package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCategory(t *testing.T) {
	valid := []string{"Doc", "ADR", "Epic", "My_Category2"}
	for _, c := range valid {
		assert.True(t, ValidCategory(c), c)
	}

	invalid := []string{"", "2Doc", "Doc Type", "Doc-Type", "Doc`) DETACH DELETE (n"}
	for _, c := range invalid {
		assert.False(t, ValidCategory(c), c)
	}
}

func TestValidRelationshipType(t *testing.T) {
	assert.True(t, ValidRelationshipType("REFERENCES"))
	assert.True(t, ValidRelationshipType("PART_OF"))
	assert.False(t, ValidRelationshipType("HAS SPACE"))
	assert.False(t, ValidRelationshipType(""))
}

func TestGenerateNodeID(t *testing.T) {
	id := GenerateNodeID("Doc")
	assert.True(t, strings.HasPrefix(id, "Doc_"))
	assert.Len(t, strings.Split(id, "_"), 3)

	// Collisions within a category are overwhelmingly unlikely.
	assert.NotEqual(t, GenerateNodeID("Doc"), GenerateNodeID("Doc"))
}

func TestNodePropAccessors(t *testing.T) {
	node := &Node{Props: map[string]interface{}{
		"title":  "t",
		"count":  int64(3),
		"ratio":  2.0,
		"synced": true,
	}}

	assert.Equal(t, "t", node.StringProp("title", "fallback"))
	assert.Equal(t, "fallback", node.StringProp("missing", "fallback"))
	assert.Equal(t, 3, node.IntProp("count", 0))
	assert.Equal(t, 2, node.IntProp("ratio", 0))
	assert.Equal(t, 9, node.IntProp("missing", 9))
	assert.True(t, node.BoolProp("synced", false))

	empty := &Node{}
	assert.Equal(t, "", empty.Content())
	assert.False(t, empty.BoolProp("synced", false))
}
