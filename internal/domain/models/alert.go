package models

import "time"

// Well-known alert kinds produced by the husbandry schedule.
const (
	AlertSlaughterReminder = "SLAUGHTER_REMINDER"
	AlertDeworming         = "DEWORMING"
	AlertLitterSeparation  = "LITTER_SEPARATION"
)

// AlertStatus is the lifecycle status of an alert.
type AlertStatus string

const (
	AlertPending      AlertStatus = "PENDING"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertDone         AlertStatus = "DONE"
	AlertExpired      AlertStatus = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertPending, AlertAcknowledged, AlertDone, AlertExpired:
		return true
	}
	return false
}

// AlertPriority ranks alerts for the console.
type AlertPriority string

const (
	PriorityLow    AlertPriority = "LOW"
	PriorityMedium AlertPriority = "MEDIUM"
	PriorityHigh   AlertPriority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p AlertPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Alert is a scheduled husbandry task bound to one or more animals.
type Alert struct {
	Record         `bson:",inline"`
	Name           string        `json:"name" bson:"name"`
	Status         AlertStatus   `json:"status" bson:"status"`
	Priority       AlertPriority `json:"priority" bson:"priority"`
	InitDate       time.Time     `json:"init_date" bson:"init_date"`
	MaxDate        time.Time     `json:"max_date" bson:"max_date"`
	AnimalID       string        `json:"animal_id,omitempty" bson:"animal_id,omitempty"`
	AnimalIDs      []string      `json:"animal_ids,omitempty" bson:"animal_ids,omitempty"`
	DeclinedReason string        `json:"declined_reason,omitempty" bson:"declined_reason,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Notes          string        `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Open reports whether the alert can still be resolved.
func (a Alert) Open() bool { return a.Status == AlertPending || a.Status == AlertAcknowledged }

// Declined reports whether the alert was resolved by a decline.
func (a Alert) Declined() bool { return a.Status == AlertDone && a.DeclinedReason != "" }

// IsSlaughterReminder reports whether completing the alert slaughters animals.
func (a Alert) IsSlaughterReminder() bool { return a.Name == AlertSlaughterReminder }

// Members returns the distinct animal ids the alert references.
func (a Alert) Members() []string {
	seen := make(map[string]struct{}, len(a.AnimalIDs)+1)
	out := make([]string, 0, len(a.AnimalIDs)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(a.AnimalID)
	for _, id := range a.AnimalIDs {
		add(id)
	}
	return out
}

// HasMember reports whether id is linked to the alert.
func (a Alert) HasMember(id string) bool {
	for _, member := range a.Members() {
		if member == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with a.
func (a Alert) Clone() Alert {
	cp := a
	cp.AnimalIDs = append([]string(nil), a.AnimalIDs...)
	return cp
}
