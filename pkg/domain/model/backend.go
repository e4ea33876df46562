package model

import "strings"

// PathKind classifies a Vault API path inside a KV mount
type PathKind int

const (
	PathOther PathKind = iota
	PathData
	PathMetadata
)

// Backend describes a KV secrets engine mount
type Backend struct {
	Mount   string
	Version int // 1 or 2
}

func (b Backend) mount() string {
	return strings.Trim(b.Mount, "/")
}

// DataPath returns the API path used to read, write and delete a secret
func (b Backend) DataPath(rel string) string {
	if b.Version == 1 {
		return b.mount() + "/" + rel
	}
	return b.mount() + "/data/" + rel
}

// MetadataPath returns the API path used to list secrets under rel
func (b Backend) MetadataPath(rel string) string {
	if b.Version == 1 {
		return b.mount() + "/" + rel
	}
	return b.mount() + "/metadata/" + rel
}

// Relative maps an API path back to a path relative to the mount.
//
// For KV v2 only data/ and metadata/ paths are recognized; everything else
// (destroy/, undelete/, config) is PathOther.
func (b Backend) Relative(apiPath string) (string, PathKind) {
	apiPath = strings.TrimPrefix(apiPath, "/")
	rest, ok := strings.CutPrefix(apiPath, b.mount()+"/")
	if !ok {
		return "", PathOther
	}

	if b.Version == 1 {
		return rest, PathData
	}

	if rel, ok := strings.CutPrefix(rest, "data/"); ok {
		return rel, PathData
	}
	if rel, ok := strings.CutPrefix(rest, "metadata/"); ok {
		return rel, PathMetadata
	}
	return "", PathOther
}
