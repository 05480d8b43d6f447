package db

import "embed"

// MigrationFS embeds the schema for identities, sessions, revoked tokens, MFA
// challenges, vault secrets, the vault audit trail, audit events and alerts.
// Applied by internal/db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
