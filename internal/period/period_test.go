package period

import (
	"sort"
	"testing"
	"time"

	"github.com/goodsign/monday"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekOfYear(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want Week
	}{
		{"mid january", day(2025, time.January, 15), Week{2025, 3}},
		{"first thursday week", day(2025, time.January, 2), Week{2025, 1}},
		{"december in next year's week 1", day(2024, time.December, 30), Week{2025, 1}},
		{"january in previous year's week 53", day(2021, time.January, 1), Week{2020, 53}},
		{"sunday stays in its monday week", day(2025, time.January, 12), Week{2025, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, WeekOf(tc.in))
			require.Equal(t, tc.want.Week, WeekOfYear(tc.in))
		})
	}
}

func TestWeekKeySortsChronologically(t *testing.T) {
	keys := []string{
		WeekOf(day(2025, time.March, 10)).Key(),
		WeekOf(day(2025, time.January, 6)).Key(),
		WeekOf(day(2024, time.December, 2)).Key(),
	}
	sort.Strings(keys)
	require.Equal(t, []string{"2024-W49", "2025-W02", "2025-W11"}, keys)
	require.Equal(t, "Semana 2", WeekOf(day(2025, time.January, 6)).Label())
}

func TestMonthLabel(t *testing.T) {
	require.Equal(t, "enero 2025", MonthKey(day(2025, time.January, 5), DefaultLocale))
	require.Equal(t, "enero 2025", Month{2025, time.January}.Label(""))
	require.Equal(t, "March 2024", Month{2024, time.March}.Label(monday.LocaleEnUS))
}

func TestMonthOrdering(t *testing.T) {
	a := Month{2024, time.December}
	b := Month{2025, time.January}
	require.True(t, a.Before(b))
	require.False(t, b.Before(a))
	require.Equal(t, "2024-12", a.Key())

	parsed, err := ParseMonthKey("2025-01")
	require.NoError(t, err)
	require.Equal(t, b, parsed)

	_, err = ParseMonthKey("enero 2025")
	require.ErrorIs(t, err, ErrInvalidMonthKey)
}

func TestDaysIn(t *testing.T) {
	require.Equal(t, 29, DaysIn(2024, time.February))
	require.Equal(t, 28, DaysIn(2025, time.February))
	require.Equal(t, 31, Month{2025, time.December}.Days())
}

func TestDisplayDate(t *testing.T) {
	require.Equal(t, "05/01/25", DisplayDate("2025-01-05"))
	require.Equal(t, "", DisplayDate(""))
	require.Equal(t, "", DisplayDate("not a date"))
}

func TestParseLocale(t *testing.T) {
	l, err := ParseLocale("")
	require.NoError(t, err)
	require.Equal(t, monday.Locale(DefaultLocale), l)

	_, err = ParseLocale("xx_YY")
	require.Error(t, err)
}
