package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTeamDirectory_PreservesOrder(t *testing.T) {
	dir, err := ParseTeamDirectory([]byte(`
Mike Lee: 654321987
John Doe: "123456789"
Jane Smith: 987654321
`))
	require.NoError(t, err)
	require.Equal(t, []Member{
		{Name: "Mike Lee", ChatID: "654321987"},
		{Name: "John Doe", ChatID: "123456789"},
		{Name: "Jane Smith", ChatID: "987654321"},
	}, dir.Members())

	chatID, ok := dir.Lookup("John Doe")
	require.True(t, ok)
	require.Equal(t, "123456789", chatID)

	_, ok = dir.Lookup("Nobody")
	require.False(t, ok)
}

func TestParseTeamDirectory_AcceptsJSON(t *testing.T) {
	dir, err := ParseTeamDirectory([]byte(`{"John Doe": "123", "Jane Smith": "456"}`))
	require.NoError(t, err)
	require.Len(t, dir.Members(), 2)
}

func TestParseTeamDirectory_Empty(t *testing.T) {
	dir, err := ParseTeamDirectory(nil)
	require.NoError(t, err)
	require.Empty(t, dir.Members())
}

func TestParseTeamDirectory_Errors(t *testing.T) {
	cases := map[string]string{
		"not a mapping": "- John Doe\n- Jane Smith\n",
		"nested value":  "John Doe:\n  chat: 1\n",
		"duplicate":     "John Doe: 1\nJohn Doe: 2\n",
		"empty chat id": "John Doe: \"\"\n",
		"bad yaml":      "John Doe: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTeamDirectory([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestMembers_ReturnsCopy(t *testing.T) {
	dir := testDirectory(t)
	members := dir.Members()
	members[0].Name = "changed"
	require.Equal(t, "John Doe", dir.Members()[0].Name)
}

func TestAccessGate(t *testing.T) {
	gate, err := ParseAllowList([]byte("- 1139205377\n- \"987654321\"\n"))
	require.NoError(t, err)
	require.True(t, gate.Authorize("1139205377"))
	require.True(t, gate.Authorize("987654321"))
	require.False(t, gate.Authorize("42"))
	require.False(t, gate.Authorize(""))

	var nilGate *AccessGate
	require.False(t, nilGate.Authorize("1139205377"))

	_, err = ParseAllowList([]byte("admins: 1"))
	require.Error(t, err)
}
