// Package postgres implements goGuard.AccountStore on PostgreSQL via pgx/v5.
//
// Accounts live in three tables: accounts, account_roles and
// password_history. UpdateAccount takes a row lock with SELECT ... FOR UPDATE
// inside a transaction, so concurrent read-modify-write cycles against the
// same username are serialized by the database. Schema changes ship as
// embedded golang-migrate files and are applied through [Migrator].
package postgres
