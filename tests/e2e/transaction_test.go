package e2e

import (
	"context"
	"errors"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/runtime"
)

func (s *MapperSuite) TestCommittedWritesAreVisible() {
	ctx := context.Background()
	tx, err := s.engine.OpenSessionTx(ctx, nil)
	s.Require().NoError(err)

	_, err = tx.Exec(ctx, "people.insert", mapping.ParamMap{
		"name": "committed", "status": "active", "age": 1,
	})
	s.Require().NoError(err)
	s.Require().NoError(tx.Commit(ctx))
	s.Require().NoError(tx.Close())

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()
	s.Equal(int64(1), s.countPeople(ctx, session))
}

func (s *MapperSuite) TestRolledBackWritesVanish() {
	ctx := context.Background()
	tx, err := s.engine.OpenSessionTx(ctx, nil)
	s.Require().NoError(err)

	_, err = tx.Exec(ctx, "people.insert", mapping.ParamMap{
		"name": "doomed", "status": "active", "age": 1,
	})
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback(ctx))
	s.Require().NoError(tx.Close())

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()
	s.Equal(int64(0), s.countPeople(ctx, session))
}

func (s *MapperSuite) TestCloseRollsBackDirtyTransaction() {
	ctx := context.Background()
	tx, err := s.engine.OpenSessionTx(ctx, nil)
	s.Require().NoError(err)

	_, err = tx.Exec(ctx, "people.insert", mapping.ParamMap{
		"name": "abandoned", "status": "active", "age": 1,
	})
	s.Require().NoError(err)
	s.Require().NoError(tx.Close())

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()
	s.Equal(int64(0), s.countPeople(ctx, session))
}

func (s *MapperSuite) TestTransactionalHelper() {
	ctx := context.Background()
	err := runtime.Transactional(ctx, s.engine, nil, func(session *runtime.Session) error {
		_, err := session.Exec(ctx, "people.insert", mapping.ParamMap{
			"name": "kept", "status": "active", "age": 2,
		})
		return err
	})
	s.Require().NoError(err)

	boom := errors.New("boom")
	err = runtime.Transactional(ctx, s.engine, nil, func(session *runtime.Session) error {
		if _, err := session.Exec(ctx, "people.insert", mapping.ParamMap{
			"name": "undone", "status": "active", "age": 3,
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	session, err := s.engine.OpenSession()
	s.Require().NoError(err)
	defer session.Close()
	s.Equal(int64(1), s.countPeople(ctx, session))

	row, err := session.QueryOne(ctx, "people.idByName", mapping.ParamMap{"name": "kept"})
	s.Require().NoError(err)
	s.NotNil(row["id"])
}
