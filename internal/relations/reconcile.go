package relations

import (
	"context"
	"errors"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
)

// Report summarises a reconciliation pass.
type Report struct {
	Relation string `json:"relation"`
	Scanned  int    `json:"scanned"`
	Updated  int    `json:"updated"`
	// Removed counts pruned references.
	Removed int `json:"removed,omitempty"`
}

// Reconciler repairs drift left behind by partial failures and purges.
// It runs out of band, never on the request path.
type Reconciler struct {
	settings
	store docstore.Store
}

// NewReconciler returns a Reconciler over store.
func NewReconciler(store docstore.Store, opts ...Option) *Reconciler {
	return &Reconciler{settings: newSettings(opts), store: store}
}

// RecountFavorites recomputes every target counter of rel from the owners'
// sets. Owners count whatever their deleted flag, so trashing and restoring
// a user needs no recount.
func (r *Reconciler) RecountFavorites(ctx context.Context, rel catalog.Favorite) (Report, error) {
	const op = "relations.RecountFavorites"
	report := Report{Relation: rel.Name}

	owners, err := r.store.Find(ctx, rel.Owner, docstore.Query{State: docstore.AnyState})
	if err != nil {
		return report, apperr.IO(op, err)
	}
	counts := make(map[string]int64)
	for _, owner := range owners {
		seen := make(map[string]struct{})
		for _, id := range owner.RefList(rel.Field) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}

	targets, err := r.store.Find(ctx, rel.Target, docstore.Query{State: docstore.AnyState})
	if err != nil {
		return report, apperr.IO(op, err)
	}

	for _, target := range targets {
		report.Scanned++
		want := counts[target.ID]
		if target.Counter(rel.Counter) == want {
			continue
		}

		changed, err := r.update(ctx, target, func(doc *docstore.Document) bool {
			if doc.Counter(rel.Counter) == want {
				return false
			}
			doc.SetCounter(rel.Counter, want)
			return true
		})
		if err != nil {
			return report, apperr.IO(op, err)
		}
		if changed {
			report.Updated++
			r.logger.WithContext(ctx).Info().
				Str("relation", rel.Name).
				Str("target_id", target.ID).
				Int64("count", want).
				Msg("counter corrected")
		}
	}
	return report, nil
}

// PruneDangling removes references to purged members from every
// container's list of rel. Trashed members are kept since they can be
// restored.
func (r *Reconciler) PruneDangling(ctx context.Context, rel catalog.Membership) (Report, error) {
	const op = "relations.PruneDangling"
	report := Report{Relation: rel.Name}

	members, err := r.store.Find(ctx, rel.Member, docstore.Query{State: docstore.AnyState})
	if err != nil {
		return report, apperr.IO(op, err)
	}
	exists := make(map[string]struct{}, len(members))
	for _, m := range members {
		exists[m.ID] = struct{}{}
	}

	containers, err := r.store.Find(ctx, rel.Container, docstore.Query{State: docstore.AnyState})
	if err != nil {
		return report, apperr.IO(op, err)
	}

	for _, container := range containers {
		report.Scanned++
		removed := 0
		changed, err := r.update(ctx, container, func(doc *docstore.Document) bool {
			list := doc.RefList(rel.Field)
			kept := make([]string, 0, len(list))
			for _, id := range list {
				if _, ok := exists[id]; ok {
					kept = append(kept, id)
				}
			}
			removed = len(list) - len(kept)
			if removed == 0 {
				return false
			}
			doc.SetRefList(rel.Field, kept)
			return true
		})
		if err != nil {
			return report, apperr.IO(op, err)
		}
		if changed {
			report.Updated++
			report.Removed += removed
		}
	}

	if report.Removed > 0 {
		r.logger.WithContext(ctx).Info().
			Str("relation", rel.Name).
			Int("containers", report.Updated).
			Int("references", report.Removed).
			Msg("dangling references pruned")
	}
	return report, nil
}

// update applies fix to doc and saves it, reloading on conflict. A
// document purged in the meantime is skipped.
func (r *Reconciler) update(ctx context.Context, doc *docstore.Document, fix func(*docstore.Document) bool) (bool, error) {
	cur := doc
	changed := false
	err := docstore.RetryOnConflict(ctx, r.retries, func(error) {
		r.metrics.Conflict(string(doc.Kind))
	}, func() error {
		if cur == nil {
			fresh, err := r.store.Get(ctx, doc.Kind, doc.ID)
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			cur = fresh
		}
		if !fix(cur) {
			return nil
		}
		err := r.store.Save(ctx, cur)
		switch {
		case err == nil:
			changed = true
			return nil
		case errors.Is(err, docstore.ErrNotFound):
			return nil
		case errors.Is(err, docstore.ErrConflict):
			cur = nil
			return err
		default:
			return err
		}
	})
	return changed, err
}
