// Package scoring ranks stored jobs against the operator's preferences.
//
// Engine.Score is a pure function of a job and the scoring configuration:
// five weighted factors (skills/title, salary, location, company, recency)
// each contribute points in [0, weight] plus a reason, and the total stays
// within [0, 100]. Missing data zeroes only the factor that needs it.
//
// Recency is measured from the posting date to the job's last sighting, not
// to the wall clock, so rescoring an unchanged job yields the same result.
//
// Rescore recomputes every stored job after a preference change.
package scoring
