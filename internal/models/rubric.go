package models

import "time"

// CapabilityKind classifies a competency area.
type CapabilityKind string

const (
	CapabilityTechnical      CapabilityKind = "TECHNICAL"
	CapabilitySocioEmotional CapabilityKind = "SOCIO_EMOTIONAL"
)

// CriterionWeight classifies a criterion as mandatory or bonus material.
type CriterionWeight string

const (
	CriterionCritical  CriterionWeight = "CRITICAL"
	CriterionDesirable CriterionWeight = "DESIRABLE"
)

// OwnerKind tags which container type owns a capability or threshold row.
// Templates and snapshots never share children; the tag replaces the
// nullable back-reference the data model would otherwise need.
type OwnerKind string

const (
	OwnerTemplate OwnerKind = "TEMPLATE"
	OwnerSnapshot OwnerKind = "SNAPSHOT"
)

// RubricOwner identifies the container a capability/threshold belongs to.
type RubricOwner struct {
	Kind OwnerKind
	ID   string
}

// TemplateOwner builds an owner reference for a live template.
func TemplateOwner(id string) RubricOwner {
	return RubricOwner{Kind: OwnerTemplate, ID: id}
}

// SnapshotOwner builds an owner reference for an immutable snapshot.
func SnapshotOwner(id string) RubricOwner {
	return RubricOwner{Kind: OwnerSnapshot, ID: id}
}

// RubricTemplate is the live, staff-editable rubric for a discipline.
type RubricTemplate struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ShortCode string    `db:"short_code" json:"short_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Capability is a named competency area owned by exactly one template or
// exactly one snapshot.
type Capability struct {
	ID          string         `db:"id" json:"id"`
	OwnerKind   OwnerKind      `db:"owner_kind" json:"owner_kind"`
	OwnerID     string         `db:"owner_id" json:"owner_id"`
	Description string         `db:"description" json:"description"`
	Kind        CapabilityKind `db:"kind" json:"kind"`
	Position    int            `db:"position" json:"position"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Criterion is a checkable statement under one capability.
type Criterion struct {
	ID           string          `db:"id" json:"id"`
	CapabilityID string          `db:"capability_id" json:"capability_id"`
	Description  string          `db:"description" json:"description"`
	Weight       CriterionWeight `db:"weight" json:"weight"`
	Position     int             `db:"position" json:"position"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// CapabilityNode pairs a capability with its criteria in insertion order.
type CapabilityNode struct {
	Capability Capability  `json:"capability"`
	Criteria   []Criterion `json:"criteria"`
}

// TemplateStructure is the full editable state of a template: its
// capabilities with criteria plus the current threshold table.
type TemplateStructure struct {
	Template     RubricTemplate   `json:"template"`
	Capabilities []CapabilityNode `json:"capabilities"`
	Thresholds   []LevelThreshold `json:"thresholds"`
}

// CriterionCounts holds per-weight totals for an owner's criteria.
type CriterionCounts struct {
	Critical  int `db:"critical" json:"critical"`
	Desirable int `db:"desirable" json:"desirable"`
}

// Total returns the combined criterion count.
func (c CriterionCounts) Total() int {
	return c.Critical + c.Desirable
}
