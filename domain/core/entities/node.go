package entities

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Node represents a typed entity in a tenant namespace. The typed core is
// (ID, Category, timestamps); everything else lives in the Props bag and is
// interpreted on read via the accessor helpers below.
type Node struct {
	ID        string                 `json:"id"`
	Category  string                 `json:"category"`
	Props     map[string]interface{} `json:"properties"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Relationship represents a typed, directed edge between two nodes within the
// same namespace.
type Relationship struct {
	FromID    string                 `json:"fromId"`
	ToID      string                 `json:"toId"`
	Type      string                 `json:"type"`
	Props     map[string]interface{} `json:"properties,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Sync-state property keys. These are a facet of content-bearing nodes, never
// an entity of their own.
const (
	PropSynced      = "synced"
	PropSyncedAt    = "syncedAt"
	PropEditedAt    = "editedAt"
	PropEditedBy    = "editedBy"
	PropContentHash = "contentHash"
	PropGitHash     = "gitHash"
	PropUsageCount  = "usageCount"
	PropLastUsedAt  = "lastUsedAt"
	PropContent     = "content"
	PropSummary     = "summary"
	PropSourcePath  = "sourcePath"
	PropEmbedding   = "embedding"
)

var categoryPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidCategory reports whether a category is usable as a graph label.
// Categories are interpolated into statements as labels, so anything outside
// this pattern is rejected before it reaches the store.
func ValidCategory(category string) bool {
	return categoryPattern.MatchString(category)
}

// ValidRelationshipType reports whether a relationship type is usable as an
// edge label.
func ValidRelationshipType(relType string) bool {
	return categoryPattern.MatchString(relType)
}

// GenerateNodeID generates a tenant-unique node id of the form
// {category}_{time}_{random}.
func GenerateNodeID(category string) string {
	return fmt.Sprintf("%s_%d_%06d", category, time.Now().UnixMilli(), rand.Intn(1000000))
}

// StringProp returns a string property from the node's bag, or the fallback
// when absent or not a string.
func (n *Node) StringProp(key, fallback string) string {
	if n.Props == nil {
		return fallback
	}
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return fallback
}

// IntProp returns an integer property from the node's bag, tolerating the
// int64/float64 representations the store hands back.
func (n *Node) IntProp(key string, fallback int) int {
	if n.Props == nil {
		return fallback
	}
	switch v := n.Props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// BoolProp returns a boolean property from the node's bag.
func (n *Node) BoolProp(key string, fallback bool) bool {
	if n.Props == nil {
		return fallback
	}
	if v, ok := n.Props[key].(bool); ok {
		return v
	}
	return fallback
}

// Content returns the node's content field, if any.
func (n *Node) Content() string {
	return n.StringProp(PropContent, "")
}
