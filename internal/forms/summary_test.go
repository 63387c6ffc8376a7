package forms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarize_MinMaxYears(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{FormNumber: "Form 8911", Year: 2009, Title: "Refueling Property Credit", DocumentLink: "u1"},
		{FormNumber: "Form 8911", Year: 2021, Title: "Refueling Property Credit", DocumentLink: "u2"},
		{FormNumber: "Form 8911", Year: 2005, Title: "Refueling Property Credit", DocumentLink: "u3"},
	}

	s, err := Summarize(entries)
	require.NoError(t, err)
	require.Equal(t, "Form 8911", s.FormNumber)
	require.Equal(t, 2005, s.MinYear)
	require.Equal(t, 2021, s.MaxYear)
	require.LessOrEqual(t, s.MinYear, s.MaxYear)
	require.Equal(t, "Refueling Property Credit", s.FormTitle)
}

func TestSummarize_TitleMostFrequentWins(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{FormNumber: "Form 1", Year: 2001, Title: "Old Title"},
		{FormNumber: "Form 1", Year: 2002, Title: "New Title"},
		{FormNumber: "Form 1", Year: 2003, Title: "New Title"},
	}

	s, err := Summarize(entries)
	require.NoError(t, err)
	require.Equal(t, "New Title", s.FormTitle)
}

func TestSummarize_TitleTieBrokenByLatestYear(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{FormNumber: "Form 1", Year: 2001, Title: "Old Title"},
		{FormNumber: "Form 1", Year: 2010, Title: "New Title"},
	}

	s, err := Summarize(entries)
	require.NoError(t, err)
	require.Equal(t, "New Title", s.FormTitle)
}

func TestSummarize_EmptyIsNotFound(t *testing.T) {
	t.Parallel()

	_, err := Summarize(nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSummarize_FormNumberFromFirstEntry(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{FormNumber: "Form W-2", Year: 2001, Title: "Wage and Tax Statement"},
		{FormNumber: "FORM W-2", Year: 2002, Title: "Wage and Tax Statement"},
	}

	s, err := Summarize(entries)
	require.NoError(t, err)
	require.Equal(t, "Form W-2", s.FormNumber)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Form 8911", "form 8911"},
		{"  FORM   W-2  ", "form w-2"},
		{"form\t4563", "form 4563"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Normalize(tc.in))
	}
}
