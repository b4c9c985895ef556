package services

import "wasteroute-backend/internal/models"

// fullOverdueSeconds is the age past which a full bin outranks every other
// full bin.
const fullOverdueSeconds = 24 * 60 * 60

// priorityTier buckets an eligible bin: overdue full > full > three
// quarters.
func priorityTier(b models.Bin, now int64) int {
	switch {
	case b.FillLevel == models.FillFull && b.LastReported != nil && now-*b.LastReported > fullOverdueSeconds:
		return 2
	case b.FillLevel == models.FillFull:
		return 1
	default:
		return 0
	}
}

// higherPriority is the strict total order used for cluster seeding and
// tie-breaking: tier first, then staleness (older last_reported first),
// then ID so the order is never ambiguous.
func higherPriority(a, b models.Bin, now int64) bool {
	ta, tb := priorityTier(a, now), priorityTier(b, now)
	if ta != tb {
		return ta > tb
	}
	la, lb := reportedAtOrCreated(a), reportedAtOrCreated(b)
	if la != lb {
		return la < lb
	}
	return a.ID < b.ID
}

func reportedAtOrCreated(b models.Bin) int64 {
	if b.LastReported != nil {
		return *b.LastReported
	}
	return b.CreatedAt
}
