package relations

import (
	"context"

	"tunehall/internal/apperr"
	"tunehall/internal/catalog"
	"tunehall/internal/docstore"
)

// AddMembers appends memberIDs to the container's list of rel, skipping ids
// already present. Every newly added member must exist and be active; a
// missing one aborts the whole call before anything is written. The
// container is saved once and the newly added members are returned in the
// order they were appended.
func (e *Engine) AddMembers(ctx context.Context, rel catalog.Membership, containerID string, memberIDs []string) (added []*docstore.Document, err error) {
	const op = "relations.AddMembers"
	defer func() { e.metrics.RelationOp(rel.Name, "add", err) }()

	if err := validateIDs(op, catalog.Singular(rel.Container), containerID); err != nil {
		return nil, err
	}
	if len(memberIDs) == 0 {
		return nil, apperr.Validation(op, "no %s ids given", catalog.Singular(rel.Member))
	}
	if err := validateIDs(op, catalog.Singular(rel.Member), memberIDs...); err != nil {
		return nil, err
	}

	err = e.retry(ctx, rel.Container, containerID, func() error {
		added = nil

		container, err := e.accessor(rel.Container).Get(ctx, containerID)
		if err != nil {
			return err
		}

		list := container.RefList(rel.Field)
		present := make(map[string]struct{}, len(list)+len(memberIDs))
		for _, id := range list {
			present[id] = struct{}{}
		}

		for _, id := range memberIDs {
			if _, ok := present[id]; ok {
				continue
			}
			member, err := e.accessor(rel.Member).Get(ctx, id)
			if err != nil {
				return err
			}
			present[id] = struct{}{}
			list = append(list, id)
			added = append(added, member)
		}

		if len(added) == 0 {
			return nil
		}
		container.SetRefList(rel.Field, list)
		return e.save(ctx, op, container)
	})
	if err != nil {
		return nil, apperr.IO(op, err)
	}
	if added == nil {
		added = []*docstore.Document{}
	}
	return added, nil
}

// RemoveMembers drops the first occurrence of each of memberIDs from the
// container's list of rel. Ids that are not present are ignored. The
// remaining order is kept and the resulting list is returned.
func (e *Engine) RemoveMembers(ctx context.Context, rel catalog.Membership, containerID string, memberIDs []string) (list []string, err error) {
	const op = "relations.RemoveMembers"
	defer func() { e.metrics.RelationOp(rel.Name, "remove", err) }()

	if err := validateIDs(op, catalog.Singular(rel.Container), containerID); err != nil {
		return nil, err
	}
	if len(memberIDs) == 0 {
		return nil, apperr.Validation(op, "no %s ids given", catalog.Singular(rel.Member))
	}
	if err := validateIDs(op, catalog.Singular(rel.Member), memberIDs...); err != nil {
		return nil, err
	}

	err = e.retry(ctx, rel.Container, containerID, func() error {
		container, err := e.accessor(rel.Container).Get(ctx, containerID)
		if err != nil {
			return err
		}

		list = container.RefList(rel.Field)
		changed := false
		for _, id := range memberIDs {
			if i := indexOf(list, id); i >= 0 {
				list = without(list, i)
				changed = true
			}
		}

		if !changed {
			return nil
		}
		container.SetRefList(rel.Field, list)
		return e.save(ctx, op, container)
	})
	if err != nil {
		return nil, apperr.IO(op, err)
	}
	return list, nil
}

