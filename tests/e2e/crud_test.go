package e2e

import (
	"context"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/runtime"
)

func (s *MapperSuite) TestInsertAndQueryOne() {
	ctx := context.Background()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	id := s.seed(ctx, session, "ada", "active", 36)

	row, err := session.QueryOne(ctx, "people.byID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Equal(id, row["id"])
	s.Equal("ada", row["name"])
	s.Equal("active", row["status"])
	s.Equal(int64(36), row["age"])
}

func (s *MapperSuite) TestInsertWritesGeneratedKeyBack() {
	if s.cfg.name == "postgres" {
		s.T().Skip("lib/pq does not implement LastInsertId")
	}
	ctx := context.Background()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	param := mapping.ParamMap{"name": "grace", "status": "active", "age": 41}
	affected, err := session.Exec(ctx, "people.insert", param)
	s.Require().NoError(err)
	s.Equal(int64(1), affected)

	s.Require().Contains(param, "id")
	generated := asInt64(s.T(), param["id"])

	row, err := session.QueryOne(ctx, "people.byID", mapping.ParamMap{"id": generated})
	s.Require().NoError(err)
	s.Equal("grace", row["name"])
}

func (s *MapperSuite) TestNullParameters() {
	ctx := context.Background()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	id := s.seed(ctx, session, "ageless", "active", nil)

	row, err := session.QueryOne(ctx, "people.byID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Nil(row["age"])
}

func (s *MapperSuite) TestUpdateAndDelete() {
	ctx := context.Background()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	id := s.seed(ctx, session, "turing", "active", 41)

	affected, err := session.Exec(ctx, "people.rename", mapping.ParamMap{"id": id, "name": "alan"})
	s.Require().NoError(err)
	s.Equal(int64(1), affected)

	row, err := session.QueryOne(ctx, "people.byID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Equal("alan", row["name"])

	affected, err = session.Exec(ctx, "people.delete", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Equal(int64(1), affected)

	_, err = session.QueryOne(ctx, "people.byID", mapping.ParamMap{"id": id})
	s.ErrorIs(err, runtime.ErrNotFound)
}

func (s *MapperSuite) TestQueryOneRejectsMultipleRows() {
	ctx := context.Background()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()

	s.seed(ctx, session, "dup-a", "same", 1)
	s.seed(ctx, session, "dup-b", "same", 2)

	_, err = session.QueryOne(ctx, "people.search", mapping.ParamMap{"status": "same"})
	s.ErrorIs(err, runtime.ErrTooManyRows)
}
