// Package relica provides production-ready implementations of the courier
// persistence interfaces using the Relica query builder.
//
// Supports MySQL, PostgreSQL, and SQLite. The table prefix defaults to
// "courier_" and can be customized via the WithPrefix constructors.
package relica
