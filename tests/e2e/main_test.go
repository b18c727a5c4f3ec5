package e2e

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/satishbabariya/sqlmapper-go/dynamic"
	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/query/cache"
	"github.com/satishbabariya/sqlmapper-go/query/executor"
	"github.com/satishbabariya/sqlmapper-go/runtime"
)

func TestMain(m *testing.M) {
	godotenv.Load(".env")
	os.Exit(m.Run())
}

// providerConfig describes one database the suite runs against.
type providerConfig struct {
	name      string
	driver    string
	dsn       string
	bindStyle executor.BindStyle
	ddl       string
}

// MapperSuite runs the full statement lifecycle against a live
// database: registration, binding, execution, transactions and the
// shared cache.
type MapperSuite struct {
	suite.Suite
	cfg    providerConfig
	db     *sql.DB
	engine *runtime.Engine
	shared *cache.SyncCache
}

func TestSQLite(t *testing.T) {
	dir := t.TempDir()
	suite.Run(t, &MapperSuite{cfg: providerConfig{
		name:   "sqlite",
		driver: "sqlite3",
		dsn:    "file:" + filepath.Join(dir, "e2e.db") + "?_busy_timeout=5000&_journal_mode=WAL",
		ddl: `CREATE TABLE people (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			age INTEGER
		)`,
	}})
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_URL")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	suite.Run(t, &MapperSuite{cfg: providerConfig{
		name:      "postgres",
		driver:    "postgres",
		dsn:       dsn,
		bindStyle: executor.BindDollar,
		ddl: `CREATE TABLE people (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			age INTEGER
		)`,
	}})
}

func TestMySQL(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_URL")
	if dsn == "" {
		t.Skip("MYSQL_TEST_URL not set")
	}
	suite.Run(t, &MapperSuite{cfg: providerConfig{
		name:   "mysql",
		driver: "mysql",
		dsn:    dsn,
		ddl: `CREATE TABLE people (
			id INT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			status VARCHAR(32) NOT NULL,
			age INT
		)`,
	}})
}

func (s *MapperSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := sql.Open(s.cfg.driver, s.cfg.dsn)
	s.Require().NoError(err)
	s.Require().NoError(db.PingContext(ctx))
	s.db = db

	_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS people")
	s.Require().NoError(err)
	_, err = db.ExecContext(ctx, s.cfg.ddl)
	s.Require().NoError(err)

	s.shared = cache.NewSyncCache("people")
	s.engine = runtime.NewEngine(
		runtime.WithDB(db),
		runtime.WithSettings(runtime.Settings{
			Environment: s.cfg.name,
			BindStyle:   s.cfg.bindStyle,
		}),
		runtime.WithSharedCache(s.shared),
	)
	s.registerStatements()
}

func (s *MapperSuite) TearDownSuite() {
	if s.engine != nil {
		s.Require().NoError(s.engine.Close())
	}
}

func (s *MapperSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, "DELETE FROM people")
	s.Require().NoError(err)
	s.shared.Clear()
}

func (s *MapperSuite) registerStatements() {
	stmts := []struct {
		id   string
		kind mapping.Kind
		text string
		opts []mapping.StatementOption
	}{
		{"people.insert", mapping.Insert,
			"INSERT INTO people (name, status, age) VALUES (#{name}, #{status}, #{age})",
			[]mapping.StatementOption{mapping.WithKeyProperty("id")}},
		{"people.byID", mapping.Select,
			"SELECT id, name, status, age FROM people WHERE id = #{id}", nil},
		{"people.idByName", mapping.Select,
			"SELECT id FROM people WHERE name = #{name}", nil},
		{"people.count", mapping.Select,
			"SELECT COUNT(*) AS n FROM people", nil},
		{"people.rename", mapping.Update,
			"UPDATE people SET name = #{name} WHERE id = #{id}", nil},
		{"people.delete", mapping.Delete,
			"DELETE FROM people WHERE id = #{id}", nil},
		{"people.cachedByID", mapping.Select,
			"SELECT id, name, status, age FROM people WHERE id = #{id}",
			[]mapping.StatementOption{mapping.WithCache(s.shared)}},
		{"people.touchCached", mapping.Update,
			"UPDATE people SET name = #{name} WHERE id = #{id}",
			[]mapping.StatementOption{mapping.WithCache(s.shared)}},
	}
	for _, st := range stmts {
		_, err := s.engine.RegisterSQL(st.id, st.kind, st.text, st.opts...)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.engine.Register(s.searchStatement()))
}

// searchStatement selects people with an optional status filter and an
// optional id list, ordered by id.
func (s *MapperSuite) searchStatement() *mapping.Statement {
	statusIf, err := dynamic.NewIfNode("status != nil",
		dynamic.NewTextNode(" AND status = #{status}"))
	s.Require().NoError(err)
	idList, err := dynamic.NewForeachNode(dynamic.NewTextNode("#{id}"), dynamic.Foreach{
		Collection: "ids",
		Item:       "id",
		Open:       " AND id IN (",
		Separator:  ",",
		Close:      ")",
		Nullable:   true,
	})
	s.Require().NoError(err)
	tree := dynamic.NewMixedNode(
		dynamic.NewStaticTextNode("SELECT id, name, status, age FROM people"),
		dynamic.NewWhereNode(dynamic.NewMixedNode(statusIf, idList)),
		dynamic.NewStaticTextNode("ORDER BY id"),
	)
	return mapping.NewStatement("people.search", mapping.Select, s.engine.NewDynamicSource(tree))
}

// seed inserts one person and returns the generated id, read back by
// name so it works on drivers without LastInsertId.
func (s *MapperSuite) seed(ctx context.Context, session *runtime.Session, name, status string, age any) int64 {
	s.T().Helper()
	_, err := session.Exec(ctx, "people.insert", mapping.ParamMap{
		"name": name, "status": status, "age": age,
	})
	s.Require().NoError(err)
	row, err := session.QueryOne(ctx, "people.idByName", mapping.ParamMap{"name": name})
	s.Require().NoError(err)
	return asInt64(s.T(), row["id"])
}

func (s *MapperSuite) countPeople(ctx context.Context, session *runtime.Session) int64 {
	s.T().Helper()
	row, err := session.QueryOne(ctx, "people.count", nil)
	s.Require().NoError(err)
	return asInt64(s.T(), row["n"])
}

func asInt64(t *testing.T, v any) int64 {
	t.Helper()
	n, ok := v.(int64)
	require.True(t, ok, "expected int64, got %T (%v)", v, v)
	return n
}

// openSQLite opens a file-backed sqlite database for the standalone
// tests that do not run the provider matrix.
func openSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
}
