// Package objects contains the domain records shared by the store, biz and api layers.
// To avoid circular dependencies, we put them here.
// JSON tags use camel case.
package objects
