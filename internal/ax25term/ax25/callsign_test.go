package ax25

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseCallsign(t *testing.T) {
	c, err := ParseCallsign("kc3smw-7")
	require.NoError(t, err)
	assert.Equal(t, "KC3SMW", c.Base)
	assert.Equal(t, uint8(7), c.SSID)
	assert.Equal(t, "KC3SMW-7", c.String())

	c0, err := ParseCallsign("kc3smw")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c0.SSID)
	assert.Equal(t, "KC3SMW", c0.String())
}

func TestParseCallsignInvalid(t *testing.T) {
	for _, s := range []string{"", "TOOLONGCALL", "KC3SMW-16", "KC3-SM!"} {
		_, err := ParseCallsign(s)
		assert.Error(t, err, s)
	}
}

func TestCallsignEqual(t *testing.T) {
	a := Callsign{Base: "KC3SMW", SSID: 7}
	b := Callsign{Base: "kc3smw", SSID: 7}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Callsign{Base: "KC3SMW", SSID: 0}))
}

// Callsign round-trip: decode(encode(base, ssid)) == (base.upper, ssid).
func TestAddrRoundTrip(t *testing.T) {
	cases := []Callsign{
		{Base: "KC3SMW", SSID: 0},
		{Base: "KC3SMW", SSID: 7},
		{Base: "WIDE1", SSID: 1},
		{Base: "N0CALL", SSID: 15},
		{Base: "A", SSID: 0},
	}
	for _, c := range cases {
		buf := make([]byte, 7)
		encodeAddr(buf, c, true, false, true)
		got, chBit, last := decodeAddr(buf)
		assert.Equal(t, c, got)
		assert.True(t, chBit)
		assert.True(t, last)
	}
}

// Callsign round-trip: for every valid (base, ssid), parsing the
// formatted string and encoding/decoding the 7-octet address field both
// recover the original callsign.
func TestCallsignRoundTripProperty(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "len")
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte(alphabet[rapid.IntRange(0, len(alphabet)-1).Draw(t, "ch")])
		}
		c := Callsign{Base: b.String(), SSID: uint8(rapid.IntRange(0, 15).Draw(t, "ssid"))}

		parsed, err := ParseCallsign(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)

		buf := make([]byte, 7)
		encodeAddr(buf, c, true, false, true)
		got, _, _ := decodeAddr(buf)
		assert.Equal(t, c, got)
	})
}
