package models

// Achievement levels run from LevelStep to LevelMax in LevelStep increments.
const (
	LevelStep = 5
	LevelMax  = 100

	// LevelCriticalCap is the last level of the critical ramp: at and above
	// it every critical criterion is required.
	LevelCriticalCap = 50
)

// LevelThreshold is the minimum criteria counts required to reach a level.
// It belongs to exactly one snapshot, or to a template when previewing.
type LevelThreshold struct {
	ID           string    `db:"id" json:"id"`
	OwnerKind    OwnerKind `db:"owner_kind" json:"owner_kind"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	Level        int       `db:"level" json:"level"`
	MinCritical  int       `db:"min_critical" json:"min_critical"`
	MinDesirable int       `db:"min_desirable" json:"min_desirable"`
}
