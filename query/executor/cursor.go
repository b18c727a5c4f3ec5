package executor

import (
	"context"
	"database/sql"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/types"
)

// Cursor streams the rows of an open result set one at a time, for
// result sets too large to hold as a slice. It is not safe for
// concurrent use and must be closed.
type Cursor struct {
	rows     *sql.Rows
	cols     []string
	decoders []types.TypeHandler
	cancel   context.CancelFunc

	skip    int
	limit   int
	read    int
	current mapping.Row
	err     error
}

func newCursor(rows *sql.Rows, registry *types.Registry, bounds mapping.RowBounds, cancel context.CancelFunc) (*Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	decoders := make([]types.TypeHandler, len(cols))
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	for i, ct := range colTypes {
		if db, ok := types.DBTypeOf(ct.DatabaseTypeName()); ok {
			if h, ok := registry.Decoder(db); ok {
				decoders[i] = h
			}
		}
	}
	return &Cursor{
		rows:     rows,
		cols:     cols,
		decoders: decoders,
		cancel:   cancel,
		skip:     bounds.Offset,
		limit:    bounds.Limit,
	}, nil
}

// Next advances to the next row inside the cursor's bounds. It returns
// false at the end of the result set or on error; Err tells which.
func (c *Cursor) Next() bool {
	if c.err != nil || c.rows == nil {
		return false
	}
	for c.skip > 0 {
		if !c.rows.Next() {
			c.err = c.rows.Err()
			return false
		}
		c.skip--
	}
	if c.read >= c.limit {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}
	row, err := scanRow(c.rows, c.cols, c.decoders)
	if err != nil {
		c.err = err
		return false
	}
	c.current = row
	c.read++
	return true
}

// Row returns the row Next advanced to.
func (c *Cursor) Row() mapping.Row {
	return c.current
}

// Err returns the first error hit while iterating.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the result set. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.cancel != nil {
		defer c.cancel()
		c.cancel = nil
	}
	if c.rows == nil {
		return nil
	}
	rows := c.rows
	c.rows = nil
	return rows.Close()
}
