// Package db provides the embedded schema migrations and seed data.
package db

import "embed"

// Migrations holds the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedProducts is the sample catalog loaded by cmd/seed-db.
//
//go:embed seed/products.json
var SeedProducts []byte
