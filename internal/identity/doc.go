// Package identity matches raw organization and person strings from source
// records against known canonical entities.
//
// Matching is an explicit ordered list of strategies. The first strategy
// that matches wins and tags the result with its method, so every match is
// auditable. A string that matches nothing is reported as unresolved; this
// package never creates entities.
package identity
