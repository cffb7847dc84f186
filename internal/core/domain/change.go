package domain

import "time"

// ChangeType classifies a record transition within one run.
type ChangeType string

const (
	// ChangeNew indicates the record is absent from the baseline.
	ChangeNew ChangeType = "new"
	// ChangeModified indicates at least one tracked attribute differs.
	ChangeModified ChangeType = "modified"
	// ChangeDeleted indicates the record is in the baseline but not the snapshot.
	ChangeDeleted ChangeType = "deleted"
)

// FieldDelta holds the old and new value of one tracked attribute.
// Values are nil, string or bool.
type FieldDelta struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeEvent is one auditable transition for one record in one run.
type ChangeEvent struct {
	// ID is the record id.
	ID string `json:"id"`

	// ChangeType is new, modified or deleted.
	ChangeType ChangeType `json:"changeType"`

	// SnapshotID is the landing snapshot this event was derived from.
	SnapshotID string `json:"snapshotId"`

	// ChangeTimestamp is when the event was classified.
	ChangeTimestamp time.Time `json:"changeTimestamp"`

	// Changes holds the differing tracked attributes of a modified record.
	Changes map[string]FieldDelta `json:"changes,omitempty"`

	// Record is the current record for new/modified and the prior record for deleted.
	Record Record `json:"record"`
}
