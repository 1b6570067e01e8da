package models

import "time"

// Snapshot is an immutable, point-in-time copy of a template's rubric.
// Name and short code are denormalized so the snapshot survives later
// template edits; TemplateID is kept for lookup and audit only and never
// drives live computation.
type Snapshot struct {
	ID         string    `db:"id" json:"id"`
	TemplateID string    `db:"template_id" json:"template_id"`
	Name       string    `db:"name" json:"name"`
	ShortCode  string    `db:"short_code" json:"short_code"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SnapshotStructure is the full object graph of a snapshot: its metadata,
// owned capability tree and threshold table.
type SnapshotStructure struct {
	Snapshot     Snapshot         `json:"snapshot"`
	Capabilities []CapabilityNode `json:"capabilities"`
	Thresholds   []LevelThreshold `json:"thresholds"`
}

// Counts tallies the snapshot's criteria by weight class.
func (s SnapshotStructure) Counts() CriterionCounts {
	var counts CriterionCounts
	for _, node := range s.Capabilities {
		for _, criterion := range node.Criteria {
			if criterion.Weight == CriterionCritical {
				counts.Critical++
			} else {
				counts.Desirable++
			}
		}
	}
	return counts
}
