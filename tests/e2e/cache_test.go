package e2e

import (
	"context"

	"github.com/satishbabariya/sqlmapper-go/mapping"
)

func (s *MapperSuite) TestSharedCacheServesRepeatReads() {
	ctx := context.Background()
	writer, err := s.engine.OpenSession()
	s.Require().NoError(err)
	id := s.seed(ctx, writer, "cached", "active", 7)
	s.Require().NoError(writer.Close())

	first, err := s.engine.OpenSession()
	s.Require().NoError(err)
	row, err := first.QueryOne(ctx, "people.cachedByID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Equal("cached", row["name"])
	s.Require().NoError(first.Commit(ctx))
	s.Require().NoError(first.Close())
	s.Equal(1, s.shared.Size())

	// Change the row behind the cache's back; a repeat read must come
	// from the cache, not the table.
	_, err = s.db.ExecContext(ctx, "UPDATE people SET name = 'sneaky' WHERE name = 'cached'")
	s.Require().NoError(err)

	second, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer second.Close()
	row, err = second.QueryOne(ctx, "people.cachedByID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Equal("cached", row["name"])
}

func (s *MapperSuite) TestStagedResultsPublishOnClose() {
	ctx := context.Background()
	writer, err := s.engine.OpenSession()
	s.Require().NoError(err)
	id := s.seed(ctx, writer, "staged", "active", 7)
	s.Require().NoError(writer.Close())

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	_, err = session.QueryOne(ctx, "people.cachedByID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)

	// Still staged: nothing published while the session is open.
	s.Equal(0, s.shared.Size())

	// A clean close settles the overlay the same way a commit does.
	s.Require().NoError(session.Close())
	s.Equal(1, s.shared.Size())
}

func (s *MapperSuite) TestWritesFlushTheSharedCache() {
	ctx := context.Background()
	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	id := s.seed(ctx, session, "flushed", "active", 7)

	_, err = session.QueryOne(ctx, "people.cachedByID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Require().NoError(session.Commit(ctx))
	s.Require().NoError(session.Close())
	s.Equal(1, s.shared.Size())

	writer, err := s.engine.OpenSession()
	s.Require().NoError(err)
	_, err = writer.Exec(ctx, "people.touchCached", mapping.ParamMap{"id": id, "name": "renamed"})
	s.Require().NoError(err)
	s.Require().NoError(writer.Commit(ctx))
	s.Require().NoError(writer.Close())
	s.Equal(0, s.shared.Size())

	reader, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer reader.Close()
	row, err := reader.QueryOne(ctx, "people.cachedByID", mapping.ParamMap{"id": id})
	s.Require().NoError(err)
	s.Equal("renamed", row["name"])
}
