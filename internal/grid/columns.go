package grid

import "context"

// Column endpoints take visible indices: positions among included columns,
// as the client sees them.

func (c *call) resizeColumn(ctx context.Context, p Params) (any, error) {
	index, err := p.Int("index")
	if err != nil {
		return nil, err
	}
	size, err := p.Int("size")
	if err != nil {
		return nil, err
	}
	if err := c.layout.Resize(ctx, index, size); err != nil {
		return nil, err
	}
	c.columnsChanged(ctx, EndpointResizeColumn)
	return struct{}{}, nil
}

func (c *call) moveColumn(ctx context.Context, p Params) (any, error) {
	from, err := p.Int("old_index")
	if err != nil {
		return nil, err
	}
	to, err := p.Int("new_index")
	if err != nil {
		return nil, err
	}
	if err := c.layout.Move(ctx, from, to); err != nil {
		return nil, err
	}
	c.columnsChanged(ctx, EndpointMoveColumn)
	return struct{}{}, nil
}

func (c *call) hideColumn(ctx context.Context, p Params) (any, error) {
	index, err := p.Int("index")
	if err != nil {
		return nil, err
	}
	if err := c.layout.Hide(ctx, index, p.Bool("hidden")); err != nil {
		return nil, err
	}
	c.columnsChanged(ctx, EndpointHideColumn)
	return struct{}{}, nil
}

func (c *call) resetColumns(ctx context.Context) (any, error) {
	if err := c.layout.Reset(ctx); err != nil {
		return nil, err
	}
	c.columnsChanged(ctx, EndpointResetColumns)
	return struct{}{}, nil
}
