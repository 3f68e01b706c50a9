package nis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func apply(lines ...string) *Accumulator {
	p := NewLineParser(testLogger())
	var acc Accumulator
	for _, l := range lines {
		p.ApplyLine(l, &acc)
	}
	return &acc
}

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"LINEV", "230.0", "Volts"}, tokenize("LINEV    : 230.0 Volts"))
	require.Equal(t, []string{"END", "APC", "10", "11", "13"}, tokenize("END APC : 10:11:13"))
	require.Empty(t, tokenize(" : :: "))

	long := tokenize("A B C D E F G H I J K L M")
	require.Len(t, long, MaxTokens)
	require.Equal(t, "J", long[MaxTokens-1])
}

func TestApplyLine_Numeric(t *testing.T) {
	acc := apply("LINEV : 230.0 Volts", "TIMELEFT: 45.0 Minutes")
	require.True(t, acc.Present().Has(LineVoltage))
	require.Equal(t, 230, acc.Value(LineVoltage))
	require.Equal(t, 45, acc.Value(TimeLeft))
}

func TestApplyLine_NegativeAndTrailingNewline(t *testing.T) {
	acc := apply("LOADPCT : -3 Percent", "BCHARGE : 100\n")
	require.Equal(t, -3, acc.Value(LoadPercent))
	require.Equal(t, 100, acc.Value(BatteryCharge))
}

func TestApplyLine_BadNumberLeavesFieldAbsent(t *testing.T) {
	acc := apply("LINEV: abc", "BCHARGE : 95.0 Percent")
	require.False(t, acc.Present().Has(LineVoltage))
	require.True(t, acc.Present().Has(BatteryCharge))
	require.Equal(t, 95, acc.Value(BatteryCharge))
}

func TestApplyLine_OverflowLeavesFieldAbsent(t *testing.T) {
	acc := apply("LINEV : 99999999999999999999999 Volts")
	require.False(t, acc.Present().Has(LineVoltage))
	require.Zero(t, acc.Value(LineVoltage))
}

func TestApplyLine_UnknownLabelIgnored(t *testing.T) {
	acc := apply("LINEV : 230.0 Volts", "MODEL : Back-UPS 700", "LINEFREQ : 50.0 Hz")
	require.Equal(t, NewFieldSet(LineVoltage), acc.Present())
	require.Equal(t, 230, acc.Value(LineVoltage))
}

func TestApplyLine_ShortLineIgnored(t *testing.T) {
	acc := apply("LINEV", "LINEV :", "")
	require.Equal(t, FieldSet(0), acc.Present())
}

func TestApplyLine_Substring(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"STATUS : ONLINE", 1},
		{"STATUS : ONLINE SMARTTRIM", 1},
		{"STATUS : ONBATT LOWBATT", 0},
		{"STATUS : OFFLINE", 0},
		{"STATUS : COMMLOST", 0},
	}
	for _, tc := range cases {
		acc := apply(tc.line)
		require.True(t, acc.Present().Has(Online), tc.line)
		require.Equal(t, tc.want, acc.Value(Online), tc.line)
	}
}

func TestApplyLine_LastWriteWins(t *testing.T) {
	acc := apply("BCHARGE : 50", "BCHARGE : 60", "STATUS : ONLINE", "STATUS : ONBATT")
	require.Equal(t, 60, acc.Value(BatteryCharge))
	require.Equal(t, 0, acc.Value(Online))
}

func TestParseLeadingInt(t *testing.T) {
	v, err := parseLeadingInt("230.0")
	require.NoError(t, err)
	require.Equal(t, 230, v)

	v, err = parseLeadingInt("+7x")
	require.NoError(t, err)
	require.Equal(t, 7, v)

	_, err = parseLeadingInt("-")
	require.Error(t, err)
	_, err = parseLeadingInt(".5")
	require.Error(t, err)
}
