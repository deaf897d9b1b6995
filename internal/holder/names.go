package holder

import (
	"strings"

	"github.com/supervisr/core/internal/svcerr"
)

const (
	maxSegmentBytes = 128
	maxPathBytes    = 200
	maxDepth        = 7

	// RootName is the reserved name of the tree root (the host-equivalent
	// container every other container descends from).
	RootName = "root"
	// SupervisorRootName is the reserved name of the synthetic parent of
	// every user-created container, itself a child of RootName.
	SupervisorRootName = "supervisor"
)

func isSegmentByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '@' || b == ':' || b == '.' || b == '-':
		return true
	}
	return false
}

// ValidateName checks a container name against the segment grammar:
// name := segment ('/' segment)*, each segment 1-128 bytes from
// [A-Za-z0-9_@:.-] and not exactly ".", total path <= 200 bytes, depth <= 7.
// RootName and SupervisorRootName are reserved and rejected here; the Holder
// creates them directly, never through client-facing Create.
func ValidateName(name string) error {
	if name == "" {
		return svcerr.New(svcerr.InvalidValue, "name: empty")
	}
	if len(name) > maxPathBytes {
		return svcerr.New(svcerr.InvalidValue, "name: exceeds %d bytes", maxPathBytes)
	}
	if strings.HasPrefix(name, "/") {
		return svcerr.New(svcerr.InvalidValue, "name: leading '/'")
	}
	if strings.Contains(name, "//") {
		return svcerr.New(svcerr.InvalidValue, "name: empty path segment")
	}
	if name == RootName || name == SupervisorRootName {
		return svcerr.New(svcerr.InvalidValue, "name: %q is reserved", name)
	}

	segments := strings.Split(name, "/")
	if len(segments) > maxDepth {
		return svcerr.New(svcerr.InvalidValue, "name: depth exceeds %d", maxDepth)
	}
	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return svcerr.New(svcerr.InvalidValue, "name: empty path segment")
	}
	if len(seg) > maxSegmentBytes {
		return svcerr.New(svcerr.InvalidValue, "name: segment %q exceeds %d bytes", seg, maxSegmentBytes)
	}
	if seg == "." {
		return svcerr.New(svcerr.InvalidValue, "name: segment cannot be \".\"")
	}
	for i := 0; i < len(seg); i++ {
		if !isSegmentByte(seg[i]) {
			return svcerr.New(svcerr.InvalidValue, "name: segment %q has invalid byte %q", seg, seg[i])
		}
	}
	return nil
}

// ParentName returns the name of name's parent: everything before the last
// '/', or RootName's child SupervisorRootName for a top-level name, or ""
// for RootName itself (the tree root has no parent).
func ParentName(name string) string {
	if name == RootName {
		return ""
	}
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return SupervisorRootName
	}
	return name[:idx]
}
