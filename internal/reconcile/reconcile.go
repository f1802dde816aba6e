package reconcile

import (
	"cmp"
	"fmt"
	"slices"

	"tollgate/internal/usage"
	"tollgate/pkg/domain"
)

// side holds one party's reports, with identical redeliveries collapsed.
type side struct {
	reporter   domain.Reporter
	events     map[usage.Key]usage.Event
	conflicted map[usage.Key]int
}

func collect(reporter domain.Reporter, events []usage.Event) side {
	s := side{
		reporter:   reporter,
		events:     make(map[usage.Key]usage.Event, len(events)),
		conflicted: make(map[usage.Key]int),
	}
	hashes := make(map[usage.Key]map[string]struct{}, len(events))
	for _, e := range events {
		k := e.Key()
		if hashes[k] == nil {
			hashes[k] = make(map[string]struct{}, 1)
		}
		hashes[k][e.ContentHash()] = struct{}{}
		s.events[k] = e
	}
	for k, hs := range hashes {
		if len(hs) > 1 {
			s.conflicted[k] = len(hs)
			delete(s.events, k)
		}
	}
	return s
}

// Reconcile compares both parties' reports. It is a pure function of in.
func Reconcile(in Input) Report {
	enf := collect(domain.ReporterEnforcer, in.Enforcer)
	con := collect(domain.ReporterConsumer, in.Consumer)

	rep := Report{AsOf: in.AsOf}
	spent := make(map[domain.LicenseID]int64)

	for _, s := range []side{enf, con} {
		for k, n := range s.conflicted {
			rep.Discrepancies = append(rep.Discrepancies, Discrepancy{
				LicenseID: k.LicenseID,
				EventID:   k.EventID,
				Cause:     CauseDuplicate,
				Reporter:  s.reporter,
				Detail:    fmt.Sprintf("%s sent %d conflicting reports", s.reporter, n),
			})
		}
	}

	for k, e := range enf.events {
		if _, dup := con.conflicted[k]; dup {
			continue
		}
		c, ok := con.events[k]
		if !ok {
			rep.single(in, e, domain.ReporterConsumer)
			continue
		}
		if d, ok := compare(e, c); ok {
			rep.Discrepancies = append(rep.Discrepancies, d)
			continue
		}
		rep.Confirmed++
		if e.Success {
			spent[k.LicenseID] += e.Cost
		}
	}
	for k, c := range con.events {
		if _, dup := enf.conflicted[k]; dup {
			continue
		}
		if _, ok := enf.events[k]; !ok {
			rep.single(in, c, domain.ReporterEnforcer)
		}
	}

	for licenseID, budget := range in.Budgets {
		if s := spent[licenseID]; s > budget+in.Tolerance {
			rep.Overspends = append(rep.Overspends, Overspend{
				LicenseID: licenseID,
				Budget:    budget,
				Spent:     s,
				Excess:    s - budget,
			})
		}
	}

	rep.sort()
	return rep
}

// single judges a report whose counterpart is absent.
func (r *Report) single(in Input, e usage.Event, missing domain.Reporter) {
	if !in.From.IsZero() && e.ResolvedAt.Before(in.From) {
		return
	}
	if !in.To.IsZero() && !e.ResolvedAt.Before(in.To) {
		return
	}
	if in.AsOf.Sub(e.ResolvedAt) <= in.LagWindow {
		r.Pending = append(r.Pending, e.Key())
		return
	}
	d := Discrepancy{
		LicenseID: e.LicenseID,
		EventID:   e.EventID,
		Cause:     CauseMissingReport,
		Reporter:  missing,
		Detail:    fmt.Sprintf("no %s report after %s", missing, in.LagWindow),
	}
	ev := e
	if e.Reporter == domain.ReporterEnforcer {
		d.Enforcer = &ev
	} else {
		d.Consumer = &ev
	}
	r.Discrepancies = append(r.Discrepancies, d)
}

// compare returns a discrepancy for a matched pair that disagrees. Status
// disagreement outranks cost disagreement.
func compare(e, c usage.Event) (Discrepancy, bool) {
	d := Discrepancy{LicenseID: e.LicenseID, EventID: e.EventID, Enforcer: &e, Consumer: &c}
	switch {
	case e.Success != c.Success:
		d.Cause = CauseStatusMismatch
		d.Detail = fmt.Sprintf("enforcer success=%t, consumer success=%t", e.Success, c.Success)
	case e.Cost != c.Cost:
		d.Cause = CauseCostMismatch
		d.Detail = fmt.Sprintf("enforcer cost=%d, consumer cost=%d", e.Cost, c.Cost)
	default:
		return Discrepancy{}, false
	}
	return d, true
}

func compareKey(a, b usage.Key) int {
	return cmp.Or(
		cmp.Compare(a.LicenseID.String(), b.LicenseID.String()),
		cmp.Compare(a.EventID.String(), b.EventID.String()),
	)
}

func (r *Report) sort() {
	slices.SortFunc(r.Pending, compareKey)
	slices.SortFunc(r.Discrepancies, func(a, b Discrepancy) int {
		return cmp.Or(
			compareKey(usage.Key{LicenseID: a.LicenseID, EventID: a.EventID}, usage.Key{LicenseID: b.LicenseID, EventID: b.EventID}),
			cmp.Compare(a.Cause, b.Cause),
			cmp.Compare(a.Reporter, b.Reporter),
		)
	})
	slices.SortFunc(r.Overspends, func(a, b Overspend) int {
		return cmp.Compare(a.LicenseID.String(), b.LicenseID.String())
	})
}
