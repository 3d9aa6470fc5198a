// Package migration applies versioned SQL migrations to the monitor database.
//
// Migration files are read from an fs.FS (normally embedded into the binary)
// and must be named {version}_{description}.sql, for example
// 001_create_users.sql. Versions are numeric and must form a continuous
// sequence. Each file runs inside its own transaction and is recorded in the
// schema_migrations table together with a BLAKE2b checksum of its contents,
// so edits to an already applied file are detected on the next run.
//
// Statements are split on semicolons; migration files must therefore not
// contain semicolons inside string literals or trigger bodies.
package migration
