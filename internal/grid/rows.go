package grid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

// moveRows reinserts the dragged records at new_index. The ids are applied
// in reverse order, the i-th at list position new_index+i+1.
func (c *call) moveRows(ctx context.Context, p Params) (any, error) {
	e := c.entity
	if !e.Ordered() {
		return nil, fmt.Errorf("move rows: %s has no position column: %w", e.Name, ErrUnsupported)
	}
	raw, err := p.List("ids")
	if err != nil {
		return nil, err
	}
	newIndex, err := p.Int("new_index")
	if err != nil {
		return nil, err
	}
	if newIndex < 0 {
		return nil, inputErrorf("new_index must not be negative, got %d", newIndex)
	}

	ids := make([]any, len(raw))
	for i, id := range raw {
		cid, err := e.CastID(id)
		if err != nil {
			return nil, inputErrorf("ids: %v", err)
		}
		ids[len(raw)-1-i] = cid
	}

	err = c.store.RunInTransaction(ctx, func(tx store.Store) error {
		for i, id := range ids {
			if err := tx.InsertAt(ctx, e, id, newIndex+i+1); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return inputErrorf("Couldn't find %s with id=%v", model.Humanize(e.Name), id)
				}
				return fmt.Errorf("move %s %v: %w", e.Name, id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.dataChanged(ctx, EndpointMoveRows)
	return struct{}{}, nil
}
