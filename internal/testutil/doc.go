// Package testutil provides deterministic helpers shared by package tests:
// a stepping wall clock and event-table fixture builders.
package testutil
