package domain

import "time"

// ClusterMember maps one citizen to the account cluster they belong to.
// PK: citizen_id — each citizen appears at most once, which is the
// "at most one cluster per account" invariant expressed as a key schema.
// A citizen with no row is an implicit singleton cluster of themselves.
type ClusterMember struct {
	CitizenID string    `json:"citizen_id" dynamodbav:"citizen_id"`
	ClusterID string    `json:"cluster_id" dynamodbav:"cluster_id"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

// ClusterInfo is the read model for a citizen's cluster membership.
// For an unclustered citizen, ClusterID is empty, CitizenIDs holds only
// the citizen and CreatedAt is nil.
type ClusterInfo struct {
	ClusterID   string     `json:"cluster_id"`
	CitizenIDs  []string   `json:"citizen_ids"`
	MemberCount int        `json:"member_count"`
	CreatedAt   *time.Time `json:"created_at"`
}
