package interval

import (
	"github.com/harrison/toolwindow/internal/models"
)

// Diagnostics counts the silent policies applied while reconstructing intervals.
// None of these are errors; they are surfaced so the reporting layer can log them.
type Diagnostics struct {
	OrphanCloses      int `json:"orphan_closes"`      // closes with no open, ignored
	DegenerateDropped int `json:"degenerate_dropped"` // non-positive durations, dropped
	ImplicitCloses    int `json:"implicit_closes"`    // retained implicit-close intervals
	Censored          int `json:"censored"`           // retained censored intervals
}

// Add accumulates other into d
func (d *Diagnostics) Add(other Diagnostics) {
	d.OrphanCloses += other.OrphanCloses
	d.DegenerateDropped += other.DegenerateDropped
	d.ImplicitCloses += other.ImplicitCloses
	d.Censored += other.Censored
}

// UserResult holds the intervals reconstructed for a single user.
type UserResult struct {
	UserID      string
	Intervals   []models.Interval
	Diagnostics Diagnostics
}

// machine is the per-user two-state machine. The zero value is the Closed state.
type machine struct {
	userID   string
	open     bool
	openTS   int64
	openType models.OpenType
	out      []models.Interval
	diag     Diagnostics
}

func (m *machine) step(ev models.Event) {
	switch ev.Kind {
	case models.EventOpened:
		if m.open {
			m.emit(models.NewClosedInterval(m.userID, m.openTS, ev.Timestamp, m.openType, true))
		}
		m.open = true
		m.openTS = ev.Timestamp
		m.openType = ev.OpenType
	case models.EventClosed:
		if !m.open {
			m.diag.OrphanCloses++
			return
		}
		m.emit(models.NewClosedInterval(m.userID, m.openTS, ev.Timestamp, m.openType, false))
		m.open = false
		m.openType = models.OpenTypeNone
	}
}

// emit applies the positive-duration post-filter before retaining a completed interval.
func (m *machine) emit(iv models.Interval) {
	if *iv.DurationMS <= 0 {
		m.diag.DegenerateDropped++
		return
	}
	if iv.ImplicitClose {
		m.diag.ImplicitCloses++
	}
	m.out = append(m.out, iv)
}

func (m *machine) finish() {
	if !m.open {
		return
	}
	m.out = append(m.out, models.NewCensoredInterval(m.userID, m.openTS, m.openType))
	m.diag.Censored++
	m.open = false
}

// Reconstruct turns one user's ordered event sequence into intervals.
//
// Events must be sorted by (timestamp, close-before-open) and all belong to userID;
// opened events must carry a manual or auto open type. Any violation is returned as a
// *ContractError before a single interval is produced. Open types on closed events
// are ignored.
//
// The returned intervals are in ascending open_ts order.
func Reconstruct(userID string, events []models.Event) (*UserResult, error) {
	if err := checkStream(userID, events); err != nil {
		return nil, err
	}

	m := &machine{userID: userID}
	for _, ev := range events {
		m.step(ev)
	}
	m.finish()

	return &UserResult{
		UserID:      userID,
		Intervals:   m.out,
		Diagnostics: m.diag,
	}, nil
}

// checkStream verifies the reconstructor's preconditions over the whole stream.
func checkStream(userID string, events []models.Event) error {
	for i, ev := range events {
		if ev.UserID != userID {
			return newContractError(ViolationUserMismatch, userID, i, ev, nil)
		}
		if !ev.Kind.Valid() {
			// an unknown kind cannot be placed in the tie-break order
			return newContractError(ViolationOrdering, userID, i, ev, nil)
		}
		if ev.Kind == models.EventOpened && !ev.OpenType.Valid() {
			return newContractError(ViolationMissingOpenType, userID, i, ev, nil)
		}
		if i > 0 && models.Less(ev, events[i-1]) {
			prev := events[i-1]
			return newContractError(ViolationOrdering, userID, i, ev, &prev)
		}
	}
	return nil
}
