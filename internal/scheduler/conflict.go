package scheduler

import "time"

// Booking is the minimal view of a meeting instance that conflict detection
// needs: who is attending and when.
type Booking struct {
	ID           string
	Participants []string
	Start        time.Time
	End          time.Time
}

// Conflict details an overlapping booking relation for diagnostics.
type Conflict struct {
	WithBookingID string
	Participant   string
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back meetings do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Intersects reports whether the two participant sets share a member.
func Intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// DetectConflicts identifies which existing bookings double-book a
// participant of the candidate. The result is ordered by the existing
// bookings' positions, with one entry per conflicting participant.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	if len(candidate.Participants) == 0 {
		return nil
	}

	candidateSet := make(map[string]struct{}, len(candidate.Participants))
	for _, id := range candidate.Participants {
		candidateSet[id] = struct{}{}
	}

	var conflicts []Conflict
	for _, booking := range existing {
		if booking.ID == candidate.ID {
			continue
		}
		if !Overlaps(candidate.Start, candidate.End, booking.Start, booking.End) {
			continue
		}
		for _, participant := range booking.Participants {
			if _, ok := candidateSet[participant]; ok {
				conflicts = append(conflicts, Conflict{
					WithBookingID: booking.ID,
					Participant:   participant,
				})
			}
		}
	}

	return conflicts
}
