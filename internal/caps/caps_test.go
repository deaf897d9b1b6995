package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/gocapability/capability"
)

func TestParseListRoundTripsThroughFormatList(t *testing.T) {
	set, err := ParseList("CAP_SYS_ADMIN,CAP_CHOWN, CAP_NET_RAW")
	require.NoError(t, err)
	assert.True(t, Subset(NewSet(capability.CAP_SYS_ADMIN, capability.CAP_CHOWN, capability.CAP_NET_RAW), set))
	assert.Equal(t, 3, len(set))

	assert.Equal(t, "CAP_CHOWN,CAP_NET_RAW,CAP_SYS_ADMIN", FormatList(set))
}

func TestParseListEmptyStringYieldsEmptySet(t *testing.T) {
	set, err := ParseList("")
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Equal(t, "", FormatList(set))
}

func TestParseListRejectsUnknownCapability(t *testing.T) {
	_, err := ParseList("CAP_SYS_ADMIN,CAP_NOT_A_REAL_CAP")
	assert.Error(t, err)
}

func TestWantsSysAdmin(t *testing.T) {
	withAdmin, err := ParseList("CAP_SYS_ADMIN")
	require.NoError(t, err)
	assert.True(t, WantsSysAdmin(withAdmin))

	withoutAdmin, err := ParseList("CAP_CHOWN")
	require.NoError(t, err)
	assert.False(t, WantsSysAdmin(withoutAdmin))
}
