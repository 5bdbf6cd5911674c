package sync

import "time"

// Side identifies one of the two watched playlist folders.
type Side string

const (
	// SidePC is the desktop-style folder: absolute track paths, .m3u.
	SidePC Side = "pc"
	// SidePhone is the mobile-style folder: relative track paths,
	// .m3u8 accepted and normalized to .m3u.
	SidePhone Side = "smartphone"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SidePC {
		return SidePhone
	}

	return SidePC
}

// SideFile describes one side's copy of an identity during the startup
// reconciliation pass.
type SideFile struct {
	Exists      bool
	Path        string
	Fingerprint string
	ModTime     time.Time
}

// Decision is the outcome of comparing both sides of one identity
// against the staged baseline.
type Decision int

const (
	// DecisionNone means both sides and the stage already agree.
	DecisionNone Decision = iota

	// DecisionPushPC means the pc copy wins and propagates.
	DecisionPushPC

	// DecisionPushPhone means the smartphone copy wins and propagates.
	DecisionPushPhone

	// DecisionConflict means both sides changed relative to the
	// baseline (or there is no baseline and they disagree). The
	// most-recently-modified file wins; both versions are snapshotted
	// before the loser is overwritten.
	DecisionConflict

	// DecisionDrop means the identity is gone from both sides; the
	// staged record and conversion copy are removed.
	DecisionDrop
)

// Winner returns the push decision for a conflict resolved by the
// most-recently-modified policy. A timestamp tie falls to the pc side.
func Winner(pc, phone SideFile) Decision {
	if phone.ModTime.After(pc.ModTime) {
		return DecisionPushPhone
	}

	return DecisionPushPC
}

// Decide compares the two sides of one identity against the staged
// baseline fingerprint. Pure decision logic, no I/O; RunFullSync
// performs reads and writes based on the result.
func Decide(pc, phone SideFile, baseline string, haveBaseline bool) Decision {
	switch {
	case !pc.Exists && !phone.Exists:
		if haveBaseline {
			return DecisionDrop
		}

		return DecisionNone

	case pc.Exists && !phone.Exists:
		return DecisionPushPC

	case !pc.Exists && phone.Exists:
		return DecisionPushPhone
	}

	// Both sides exist.
	if pc.Fingerprint == phone.Fingerprint {
		if haveBaseline && baseline == pc.Fingerprint {
			return DecisionNone
		}

		// Sides agree but the stage is stale or missing; adopt either
		// copy as the new baseline. The push is a no-op on disk because
		// the destination already matches.
		return DecisionPushPC
	}

	if haveBaseline {
		if pc.Fingerprint == baseline {
			// pc is clean, the phone changed.
			return DecisionPushPhone
		}

		if phone.Fingerprint == baseline {
			return DecisionPushPC
		}
	}

	// Neither side matches the baseline (or there is none): true
	// conflict, newest content wins.
	return DecisionConflict
}
