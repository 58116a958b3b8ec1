// Package model defines the core graph types: node and edge records,
// typed field declarations, and the query value types built on them.
package model
