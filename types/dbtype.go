package types

import (
	"fmt"
	"strings"
)

// DBType identifies the database-side type of a bound parameter or a
// result column. The zero value means the type was not declared.
type DBType int

const (
	Unspecified DBType = iota
	Bit
	TinyInt
	SmallInt
	Integer
	BigInt
	Float
	Real
	Double
	Numeric
	Decimal
	Char
	VarChar
	LongVarChar
	NChar
	NVarChar
	Date
	Time
	Timestamp
	Binary
	VarBinary
	LongVarBinary
	Blob
	Clob
	Boolean
	JSON
	Array
	Cursor
	Null
	Other
)

var dbTypeNames = map[DBType]string{
	Unspecified:   "UNSPECIFIED",
	Bit:           "BIT",
	TinyInt:       "TINYINT",
	SmallInt:      "SMALLINT",
	Integer:       "INTEGER",
	BigInt:        "BIGINT",
	Float:         "FLOAT",
	Real:          "REAL",
	Double:        "DOUBLE",
	Numeric:       "NUMERIC",
	Decimal:       "DECIMAL",
	Char:          "CHAR",
	VarChar:       "VARCHAR",
	LongVarChar:   "LONGVARCHAR",
	NChar:         "NCHAR",
	NVarChar:      "NVARCHAR",
	Date:          "DATE",
	Time:          "TIME",
	Timestamp:     "TIMESTAMP",
	Binary:        "BINARY",
	VarBinary:     "VARBINARY",
	LongVarBinary: "LONGVARBINARY",
	Blob:          "BLOB",
	Clob:          "CLOB",
	Boolean:       "BOOLEAN",
	JSON:          "JSON",
	Array:         "ARRAY",
	Cursor:        "CURSOR",
	Null:          "NULL",
	Other:         "OTHER",
}

// dbTypeAliases maps the names drivers report through
// sql.ColumnType.DatabaseTypeName, plus the canonical names used in
// placeholder attributes, onto DBType values.
var dbTypeAliases = map[string]DBType{
	"BIT":               Bit,
	"TINYINT":           TinyInt,
	"INT1":              TinyInt,
	"SMALLINT":          SmallInt,
	"INT2":              SmallInt,
	"SMALLSERIAL":       SmallInt,
	"INT":               Integer,
	"INTEGER":           Integer,
	"INT4":              Integer,
	"MEDIUMINT":         Integer,
	"SERIAL":            Integer,
	"BIGINT":            BigInt,
	"INT8":              BigInt,
	"BIGSERIAL":         BigInt,
	"FLOAT":             Float,
	"FLOAT4":            Float,
	"REAL":              Real,
	"DOUBLE":            Double,
	"DOUBLE PRECISION":  Double,
	"FLOAT8":            Double,
	"NUMERIC":           Numeric,
	"DECIMAL":           Decimal,
	"CHAR":              Char,
	"CHARACTER":         Char,
	"BPCHAR":            Char,
	"VARCHAR":           VarChar,
	"CHARACTER VARYING": VarChar,
	"LONGVARCHAR":       LongVarChar,
	"TEXT":              LongVarChar,
	"TINYTEXT":          LongVarChar,
	"MEDIUMTEXT":        LongVarChar,
	"LONGTEXT":          LongVarChar,
	"NCHAR":             NChar,
	"NVARCHAR":          NVarChar,
	"DATE":              Date,
	"TIME":              Time,
	"TIMETZ":            Time,
	"TIMESTAMP":         Timestamp,
	"TIMESTAMPTZ":       Timestamp,
	"DATETIME":          Timestamp,
	"BINARY":            Binary,
	"VARBINARY":         VarBinary,
	"LONGVARBINARY":     LongVarBinary,
	"BLOB":              Blob,
	"TINYBLOB":          Blob,
	"MEDIUMBLOB":        Blob,
	"LONGBLOB":          Blob,
	"BYTEA":             Blob,
	"CLOB":              Clob,
	"BOOLEAN":           Boolean,
	"BOOL":              Boolean,
	"JSON":              JSON,
	"JSONB":             JSON,
	"ARRAY":             Array,
	"CURSOR":            Cursor,
	"NULL":              Null,
	"OTHER":             Other,
}

// DBTypeOf resolves a type name case-insensitively. The boolean result
// is false for names no driver or placeholder attribute uses.
func DBTypeOf(name string) (DBType, bool) {
	t, ok := dbTypeAliases[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// String returns the canonical upper-case name of the type.
func (t DBType) String() string {
	if name, ok := dbTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DBType(%d)", int(t))
}
