package e2e

import (
	"context"

	"github.com/satishbabariya/sqlmapper-go/mapping"
)

func (s *MapperSuite) seedSearchRows(ctx context.Context) (ids []int64) {
	s.T().Helper()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()
	for _, p := range []struct {
		name, status string
		age          int
	}{
		{"ada", "active", 36},
		{"grace", "active", 41},
		{"alan", "retired", 41},
		{"edsger", "retired", 72},
	} {
		ids = append(ids, s.seed(ctx, session, p.name, p.status, p.age))
	}
	return ids
}

func (s *MapperSuite) TestSearchWithOptionalFilters() {
	ctx := context.Background()
	ids := s.seedSearchRows(ctx)

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	all, err := session.Query(ctx, "people.search", nil)
	s.Require().NoError(err)
	s.Len(all, 4)

	active, err := session.Query(ctx, "people.search", mapping.ParamMap{"status": "active"})
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("ada", active[0]["name"])
	s.Equal("grace", active[1]["name"])

	narrowed, err := session.Query(ctx, "people.search", mapping.ParamMap{
		"status": "active",
		"ids":    []int64{ids[0], ids[2]},
	})
	s.Require().NoError(err)
	s.Require().Len(narrowed, 1)
	s.Equal("ada", narrowed[0]["name"])
}

func (s *MapperSuite) TestSearchPagination() {
	ctx := context.Background()
	ids := s.seedSearchRows(ctx)

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	page, err := session.QueryBounds(ctx, "people.search", nil, mapping.RowBounds{Offset: 1, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[1], page[0]["id"])
	s.Equal(ids[2], page[1]["id"])
}

func (s *MapperSuite) TestCursorStreamsInOrder() {
	ctx := context.Background()
	s.seedSearchRows(ctx)

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	cursor, err := session.Cursor(ctx, "people.search", nil, mapping.DefaultBounds)
	s.Require().NoError(err)
	defer cursor.Close()

	var names []string
	for cursor.Next() {
		names = append(names, cursor.Row()["name"].(string))
	}
	s.Require().NoError(cursor.Err())
	s.Equal([]string{"ada", "grace", "alan", "edsger"}, names)
}
