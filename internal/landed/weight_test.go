package landed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifySpecificity(t *testing.T) {
	table := DefaultWeightTable()
	cases := []struct {
		format  string
		want    string
		matched bool
	}{
		{format: "2-LP", want: "1.9", matched: true},
		{format: "3-lp", want: "2.8", matched: true},
		{format: "LP", want: "1.0", matched: true},
		{format: " lp ", want: "1.0", matched: true},
		{format: "LP+7\"", want: "1.0", matched: true},
		{format: "CD", want: "0.2", matched: true},
		{format: "2-CD", want: "0.2", matched: true},
		{format: "LP+CD", want: "1.0", matched: true},
		{format: "2LP+CD", want: "1.0", matched: true},
		{format: "CD/LP", want: "1.0", matched: true},
		{format: "2-LP+CD", want: "1.9", matched: true},
		{format: "Cassette", want: "0.25", matched: true},
		{format: "unknown-format", want: "0.5", matched: false},
		{format: "", want: "0.5", matched: false},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			got, matched := table.Classify(tc.format)
			requireDecimal(t, tc.want, got)
			require.Equal(t, tc.matched, matched)
		})
	}
}

func TestClassifyOrdersUnsortedEntries(t *testing.T) {
	table := WeightTable{
		Entries:  []WeightEntry{{Tag: "LP", Weight: dec("1")}, {Tag: "2-LP", Weight: dec("2")}},
		Fallback: dec("1"),
	}
	got, ok := table.Classify("2-LP")
	require.True(t, ok)
	requireDecimal(t, "2", got)
}

func TestWeightTableKeepsGivenOrderForEqualLengths(t *testing.T) {
	cdFirst := NewWeightTable([]WeightEntry{{Tag: "cd", Weight: dec("0.2")}, {Tag: "lp", Weight: dec("1")}}, dec("0.5"))
	require.Equal(t, []string{"CD", "LP"}, tags(cdFirst))
	got, _ := cdFirst.Classify("LP+CD")
	requireDecimal(t, "0.2", got)

	lpFirst, err := ParseWeightTable("LP:1,CD:0.2", dec("0.5"))
	require.NoError(t, err)
	got, _ = lpFirst.Classify("LP+CD")
	requireDecimal(t, "1", got)
}

func TestDefaultWeightTableOrder(t *testing.T) {
	require.Equal(t, []string{"CASSETTE", "3-LP", "2-LP", "LP", "CD"}, tags(DefaultWeightTable()))
}

func TestParseWeightTable(t *testing.T) {
	table, err := ParseWeightTable("LP:1.0, 2-LP:1.9,cd:0.2,10\":0.6", dec("0.75"))
	require.NoError(t, err)
	require.Equal(t, []string{"2-LP", "10\"", "LP", "CD"}, tags(table))
	requireDecimal(t, "0.75", table.Fallback)

	got, ok := table.Classify("10\" single")
	require.True(t, ok)
	requireDecimal(t, "0.6", got)

	_, err = ParseWeightTable("LP=1", dec("0.5"))
	require.Error(t, err)
	_, err = ParseWeightTable("LP:heavy", dec("0.5"))
	require.Error(t, err)
	_, err = ParseWeightTable("LP:-1", dec("0.5"))
	require.Error(t, err)
	_, err = ParseWeightTable(" , ", dec("0.5"))
	require.Error(t, err)
}

func tags(t WeightTable) []string {
	out := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Tag
	}
	return out
}
