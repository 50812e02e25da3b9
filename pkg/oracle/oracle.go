// Package oracle delegates repository access decisions to an external
// tool that already governs plain Git operations, so this service never
// grows its own ACL database.
package oracle

// AccessOracle answers "may user perform action on repo?" by consulting
// an external source of truth, and normalizes raw repository names into
// the canonical form the rest of the system keys everything on.
type AccessOracle interface {
	// PrepareRepoName strips a trailing ".git" and normalizes path
	// separators. Idempotent: calling it twice is the same as once.
	PrepareRepoName(raw string) string

	// HasAccess reports whether user may perform action on repo. action
	// is "download" or "upload". Implementations MUST fail closed: any
	// ambiguity or infrastructure failure returns false, never true.
	HasAccess(repo, user, action string) bool
}
