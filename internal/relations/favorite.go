package relations

import (
	"context"
	"errors"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
)

// Toggle is the outcome of ToggleFavorite.
type Toggle struct {
	// Liked is true when the target is now in the owner's set.
	Liked bool `json:"liked"`
	// Favorites is the owner's set after the call.
	Favorites []string `json:"favorites"`
	// Count is the target's counter after the call.
	Count int64 `json:"count"`
}

// ToggleFavorite adds targetID to the owner's set of rel and increments the
// target's counter, or, if the target is already in the set, removes it and
// decrements the counter without going below zero.
//
// The owner is written first, then the target. When the target write fails
// for good the owner change stays committed and the returned error is a
// partial IO error.
func (e *Engine) ToggleFavorite(ctx context.Context, rel catalog.Favorite, ownerID, targetID string) (res Toggle, err error) {
	const op = "relations.ToggleFavorite"
	defer func() { e.metrics.RelationOp(rel.Name, "toggle", err) }()

	if err := validateIDs(op, catalog.Singular(rel.Owner), ownerID); err != nil {
		return Toggle{}, err
	}
	if err := validateIDs(op, catalog.Singular(rel.Target), targetID); err != nil {
		return Toggle{}, err
	}

	var target *docstore.Document

	// Owner side. A conflict replays both reads.
	err = e.retry(ctx, rel.Owner, ownerID, func() error {
		owner, err := e.accessor(rel.Owner).Get(ctx, ownerID)
		if err != nil {
			return err
		}
		target, err = e.accessor(rel.Target).Get(ctx, targetID)
		if err != nil {
			return err
		}

		set := owner.RefList(rel.Field)
		if i := indexOf(set, targetID); i >= 0 {
			set = without(set, i)
			res.Liked = false
		} else {
			set = append(set, targetID)
			res.Liked = true
		}
		owner.SetRefList(rel.Field, set)
		res.Favorites = set

		return e.save(ctx, op, owner)
	})
	if err != nil {
		return Toggle{}, apperr.IO(op, err)
	}

	// Target side. The owner is committed from here on, so a conflict only
	// reloads the target and re-applies the delta.
	err = e.retry(ctx, rel.Target, targetID, func() error {
		if target == nil {
			fresh, err := e.store.Get(ctx, rel.Target, targetID)
			if err != nil {
				return err
			}
			target = fresh
		}

		n := target.Counter(rel.Counter)
		switch {
		case res.Liked:
			n++
		case n > 0:
			n--
		default:
			// Already at zero.
			res.Count = 0
			return nil
		}
		target.SetCounter(rel.Counter, n)

		if err := e.store.Save(ctx, target); err != nil {
			if errors.Is(err, docstore.ErrConflict) {
				target = nil
			}
			return err
		}
		res.Count = n
		return nil
	})
	if err != nil {
		e.metrics.Partial(rel.Name)
		e.logger.WithContext(ctx).Warn().
			Err(err).
			Str("relation", rel.Name).
			Str("owner_id", ownerID).
			Str("target_id", targetID).
			Bool("liked", res.Liked).
			Msg("owner updated but target counter write failed; counter drift until reconciled")
		return res, apperr.PartialIO(op, catalog.Singular(rel.Target), targetID, err)
	}

	return res, nil
}
