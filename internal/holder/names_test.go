package holder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNameAcceptsSimpleAndNestedNames(t *testing.T) {
	assert.NoError(t, ValidateName("web"))
	assert.NoError(t, ValidateName("web/worker-1"))
	assert.NoError(t, ValidateName("a.b@c:d-1_2"))
}

func TestValidateNameRejectsEmpty(t *testing.T) {
	assert.Error(t, ValidateName(""))
}

func TestValidateNameRejectsLeadingSlash(t *testing.T) {
	assert.Error(t, ValidateName("/web"))
}

func TestValidateNameRejectsDoubleSlash(t *testing.T) {
	assert.Error(t, ValidateName("web//worker"))
}

func TestValidateNameRejectsReservedNames(t *testing.T) {
	assert.Error(t, ValidateName(RootName))
	assert.Error(t, ValidateName(SupervisorRootName))
}

func TestValidateNameRejectsDotSegment(t *testing.T) {
	assert.Error(t, ValidateName("web/./worker"))
}

func TestValidateNameRejectsInvalidByte(t *testing.T) {
	assert.Error(t, ValidateName("web worker"))
	assert.Error(t, ValidateName("web$worker"))
}

func TestValidateNameRejectsTooLongSegment(t *testing.T) {
	assert.Error(t, ValidateName(strings.Repeat("a", maxSegmentBytes+1)))
}

func TestValidateNameRejectsTooLongPath(t *testing.T) {
	seg := strings.Repeat("a", 30)
	segments := make([]string, 0, 8)
	for i := 0; i < 7; i++ {
		segments = append(segments, seg)
	}
	name := strings.Join(segments, "/")
	assert.Greater(t, len(name), maxPathBytes)
	assert.Error(t, ValidateName(name))
}

func TestValidateNameRejectsTooDeep(t *testing.T) {
	segments := make([]string, maxDepth+1)
	for i := range segments {
		segments[i] = "a"
	}
	assert.Error(t, ValidateName(strings.Join(segments, "/")))
}

func TestParentNameDerivesImmediateParent(t *testing.T) {
	assert.Equal(t, SupervisorRootName, ParentName("web"))
	assert.Equal(t, "web", ParentName("web/worker"))
	assert.Equal(t, "", ParentName(RootName))
}
