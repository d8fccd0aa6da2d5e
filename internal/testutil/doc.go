// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing fragment scripts and canned tool
// handlers, and asserting behaviors. These helpers are intentionally minimal
// and are not intended for production usage.
package testutil
