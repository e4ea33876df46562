package model

import "strings"

// SecretOpKind represents what happened to a secret on the source Vault
type SecretOpKind string

const (
	OpCreate SecretOpKind = "create"
	OpUpdate SecretOpKind = "update"
	OpDelete SecretOpKind = "delete"
)

// SecretOpSource tells where a SecretOp came from
type SecretOpSource string

const (
	SourceAudit    SecretOpSource = "audit"
	SourceFullSync SecretOpSource = "full_sync"
	SourceManual   SecretOpSource = "manual"
)

// SecretOp is a single unit of work for the sync worker
type SecretOp struct {
	Kind   SecretOpKind
	Path   string // Relative to the source backend, prefix included
	Source SecretOpSource
}

// IsWrite returns true if the op requires copying source data to destination
func (op SecretOp) IsWrite() bool {
	return op.Kind == OpCreate || op.Kind == OpUpdate
}

// NormalizePrefix returns prefix with exactly one trailing slash, or an empty string
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// MapPath rewrites a source path to the destination. The second return value is
// false when path is not under srcPrefix.
func MapPath(srcPrefix, dstPrefix, path string) (string, bool) {
	if !strings.HasPrefix(path, srcPrefix) {
		return "", false
	}
	return dstPrefix + path[len(srcPrefix):], true
}
