package types

import "time"

// StorageType tags a managed storage row.
type StorageType string

const (
	StorageTypeFact   StorageType = "fact"
	StorageTypeSignal StorageType = "signal"
	StorageTypeOutput StorageType = "output"
	StorageTypeSchema StorageType = "schema"
)

// ManagedItem is a content-addressed cache record. The storage key is a
// deterministic function of entity, agent type, and data content, so
// re-storing identical content replaces the same row.
type ManagedItem struct {
	StorageKey  string                 `json:"storage_key"`
	Entity      string                 `json:"entity"`
	AgentType   string                 `json:"agent_type"`
	StorageType StorageType            `json:"storage_type"`
	Data        map[string]interface{} `json:"data"`
	Metadata    StorageMetadata        `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}

// StorageMetadata travels with every managed item.
type StorageMetadata struct {
	Entity          string      `json:"entity"`
	AgentType       string      `json:"agent_type"`
	StorageType     StorageType `json:"storage_type"`
	SchemaVersion   string      `json:"schema_version"`
	ConfidenceScore float64     `json:"confidence_score"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	ExpiresAt       *time.Time  `json:"expires_at,omitempty"`
	Tags            []string    `json:"tags"`
	Source          string      `json:"source,omitempty"`
}

// RetrieveFilter narrows managed storage queries. All supplied criteria are
// conjunctive; zero values mean "no filter".
type RetrieveFilter struct {
	Entity         string
	AgentType      string
	StorageType    StorageType
	Limit          int
	MinConfidence  float64
	IncludeExpired bool
}

// StoreRequest carries everything needed to persist one managed item.
type StoreRequest struct {
	Entity          string
	AgentType       string
	Data            map[string]interface{}
	StorageType     StorageType
	SchemaVersion   string
	ConfidenceScore float64
	ExpiresInHours  int
	Tags            []string
	Source          string
	IndexFields     []string
}
