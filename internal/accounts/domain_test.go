package accounts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
	_, err := ParseRole("OWNER")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestPatchApplyClearsBeforeSetting(t *testing.T) {
	acc := Account{OTP: &Pending{Value: "old"}}
	exp := time.Now()
	out := Patch{ClearOTP: true, SetOTP: &Pending{Value: "new", ExpiresAt: exp}}.Apply(acc)
	require.Equal(t, "new", out.OTP.Value)
	require.Equal(t, "old", acc.OTP.Value)

	require.True(t, Patch{}.Empty())
	require.False(t, Patch{ClearReset: true}.Empty())
}
