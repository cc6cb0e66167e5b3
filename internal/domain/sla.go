package domain

import "time"

// SLADefinition commits response/resolution times for a priority tier.
// One definition per tier; changes apply only to future trackings.
type SLADefinition struct {
	ID                  string
	Name                string
	Priority            RequestPriority
	ResponseTimeHours   int
	ResolutionTimeHours int
	CreatedAt           time.Time
}

// SLATracking is the one-to-one compliance record for a request.
// Due timestamps are fixed at creation and never recomputed.
type SLATracking struct {
	ID              string
	RequestID       string
	SLAID           string
	ResponseDueAt   time.Time
	ResolutionDueAt time.Time
	ResponseMet     bool
	ResolutionMet   bool
	Breached        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SLAStatistics summarizes compliance across all tracked requests.
type SLAStatistics struct {
	ResponseBreaches   int64
	ResolutionBreaches int64
	TotalTracked       int64
}
