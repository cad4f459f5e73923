package csvimport

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderless(t *testing.T) {
	res, err := Parse(strings.NewReader("V1,alice@shop.com,Alice\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, Row{ExternalID: "V1", Email: "alice@shop.com", Name: "Alice"}, res.Rows[0])
	assert.Zero(t, res.Skipped)
}

func TestParseHeaderWithReorderedColumns(t *testing.T) {
	input := "Vendor Name,Email,Vendor ID,Phone\n" +
		"Bob's Boards, BOB@Shop.com ,V2,555\n" +
		"Carol,carol@shop.com,,\n"

	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, Row{ExternalID: "V2", Email: "bob@shop.com", Name: "Bob's Boards"}, res.Rows[0])
	assert.Equal(t, Row{ExternalID: "", Email: "carol@shop.com", Name: "Carol"}, res.Rows[1])
}

func TestParseStripsBOM(t *testing.T) {
	res, err := Parse(strings.NewReader("\xef\xbb\xbfID,Email,Name\nV1,a@b.co,A\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "V1", res.Rows[0].ExternalID)
}

func TestParseSkipsIncompleteRows(t *testing.T) {
	input := "V1,alice@shop.com,Alice\n" +
		"V2,,NoEmail\n" +
		"V3,noname@shop.com,\n" +
		"V4,not-an-email,Dave\n" +
		"V5\n" +
		"\n" +
		" , , \n"

	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 4, res.Skipped)
}

func TestParseDuplicateEmailsLastRowWins(t *testing.T) {
	input := "V1,alice@shop.com,Alice\n" +
		"V2,bob@shop.com,Bob\n" +
		"V9,ALICE@shop.com,Alice Renamed\n"

	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, Row{ExternalID: "V9", Email: "alice@shop.com", Name: "Alice Renamed"}, res.Rows[0])
	assert.Equal(t, "bob@shop.com", res.Rows[1].Email)
}

func TestParseQuotedFields(t *testing.T) {
	res, err := Parse(strings.NewReader(`V1,"alice@shop.com","Alice, Inc."` + "\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice, Inc.", res.Rows[0].Name)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse(strings.NewReader("V1,alice@shop.com,Alice\nV2,\"bob@shop.com,Bob\n"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
}

func TestParseEmpty(t *testing.T) {
	res, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestInvalidField(t *testing.T) {
	row, ok := NormalizeRow("V1", "alice@shop.com", "Alice")
	require.True(t, ok)
	assert.Empty(t, InvalidField(row))

	row, ok = NormalizeRow("V1", "alice", "Alice")
	assert.False(t, ok)
	assert.Equal(t, "email", InvalidField(row))

	row, _ = NormalizeRow("V1", "alice@shop.com", "  ")
	assert.Equal(t, "name", InvalidField(row))
}
