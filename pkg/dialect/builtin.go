package dialect

import "github.com/mfirdausazizi/scurrydb-sub002/pkg/core"

var (
	builtinPostgres = NewDialect(string(core.EnginePostgres)).
			Identifiers(`"`, `"`, `""`).
			DefaultSchema("public").
			PlaceholderStyle(PlaceholderDollar).
			Build()

	builtinMySQL = NewDialect(string(core.EngineMySQL)).
			Identifiers("`", "`", "``").
			PlaceholderStyle(PlaceholderQuestion).
			Build()

	builtinMariaDB = NewDialect(string(core.EngineMariaDB)).
			Identifiers("`", "`", "``").
			PlaceholderStyle(PlaceholderQuestion).
			Build()

	builtinSQLite = NewDialect(string(core.EngineSQLite)).
			Identifiers(`"`, `"`, `""`).
			DefaultSchema("main").
			PlaceholderStyle(PlaceholderQuestion).
			Build()

	builtinDuckDB = NewDialect(string(core.EngineDuckDB)).
			Identifiers(`"`, `"`, `""`).
			DefaultSchema("main").
			PlaceholderStyle(PlaceholderQuestion).
			Build()

	// builtinANSI serves engines without a registered dialect.
	builtinANSI = NewDialect("ansi").Build()
)

func init() {
	Register(builtinPostgres)
	Register(builtinMySQL)
	Register(builtinMariaDB)
	Register(builtinSQLite)
	Register(builtinDuckDB)
	SetDefault(builtinANSI)
}
