package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	// MaxToolNameLength is the longest tool name providers accept.
	MaxToolNameLength = 64
	// hashSuffixLength is the hex length of the hash appended to long names.
	hashSuffixLength = 8
	// serverSeparator joins server and tool names.
	serverSeparator = "__"
)

// SanitizeName replaces every character outside [A-Za-z0-9_-] with '_'.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RemoteToolName composes the name a remote tool is offered under:
// sanitize(server) + "__" + sanitize(tool). Names longer than
// MaxToolNameLength are cut to 55 characters and suffixed with "_" and the
// first 8 hex characters of SHA-256(server + "/" + tool).
func RemoteToolName(server, tool string) string {
	name := composedName(server, tool)
	if len(name) <= MaxToolNameLength {
		return name
	}
	return hashedName(name, nameHash(server, tool), hashSuffixLength)
}

func composedName(server, tool string) string {
	return SanitizeName(server) + serverSeparator + SanitizeName(tool)
}

func nameHash(server, tool string) string {
	sum := sha256.Sum256([]byte(server + "/" + tool))
	return hex.EncodeToString(sum[:])
}

// hashedName cuts base so that base + "_" + hash[:n] fits the limit.
func hashedName(base, hash string, n int) string {
	keep := MaxToolNameLength - 1 - n
	if len(base) > keep {
		base = base[:keep]
	}
	return base + "_" + hash[:n]
}

// nameAllocator hands out names that are unique within one registry build.
type nameAllocator struct {
	used map[string]bool
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]bool)}
}

// reserve claims name as-is. It reports false if the name is taken.
func (a *nameAllocator) reserve(name string) bool {
	if a.used[name] {
		return false
	}
	a.used[name] = true
	return true
}

// allocate returns a unique name for a remote tool. The plain composed name
// is preferred; on collision the hashed form is used with 8, 16 and then 32
// hex characters, and as a last resort (the same server and tool listed
// twice) a numeric suffix.
func (a *nameAllocator) allocate(server, tool string) string {
	if name := RemoteToolName(server, tool); a.reserve(name) {
		return name
	}

	base := composedName(server, tool)
	hash := nameHash(server, tool)
	for _, n := range []int{8, 16, 32} {
		if name := hashedName(base, hash, n); a.reserve(name) {
			return name
		}
	}

	for i := 2; ; i++ {
		suffix := strconv.Itoa(i)
		name := hashedName(base, hash, 32)
		keep := MaxToolNameLength - 1 - len(suffix)
		if len(name) > keep {
			name = name[:keep]
		}
		name += "_" + suffix
		if a.reserve(name) {
			return name
		}
	}
}
