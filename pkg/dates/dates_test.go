package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCalendarDate(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		year    int
		month   time.Month
		day     int
	}{
		{name: "date only", value: "2024-01-15", year: 2024, month: time.January, day: 15},
		{name: "rfc3339 datetime", value: "2024-01-15T00:00:00Z", year: 2024, month: time.January, day: 15},
		{name: "datetime without zone", value: "2024-01-15T08:30:00", year: 2024, month: time.January, day: 15},
		{name: "empty", value: "", wantErr: true},
		{name: "garbage", value: "15/01/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCalendarDate(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.year, got.Year())
			assert.Equal(t, tt.month, got.Month())
			assert.Equal(t, tt.day, got.Day())
			// Pinned to midday so timezone conversions cannot shift the calendar day.
			assert.Equal(t, 12, got.Hour())
			assert.Equal(t, 0, got.Minute())
		})
	}
}

func TestParseCalendarDatePtr(t *testing.T) {
	assert.Nil(t, ParseCalendarDatePtr(""))
	assert.Nil(t, ParseCalendarDatePtr("not-a-date"))
	require.NotNil(t, ParseCalendarDatePtr("2024-06-01"))
}

func date(value string) *time.Time {
	t := ParseCalendarDatePtr(value)
	if t == nil {
		panic("bad test date: " + value)
	}
	return t
}

func TestTransitDays(t *testing.T) {
	tests := []struct {
		name string
		etd  *time.Time
		eta  *time.Time
		want *int
	}{
		{name: "nine days", etd: date("2024-01-01"), eta: date("2024-01-10"), want: intPtr(9)},
		{name: "same day", etd: date("2024-03-05"), eta: date("2024-03-05"), want: intPtr(0)},
		{name: "arrival before departure", etd: date("2024-01-10"), eta: date("2024-01-01"), want: nil},
		{name: "missing etd", etd: nil, eta: date("2024-01-10"), want: nil},
		{name: "missing eta", etd: date("2024-01-01"), eta: nil, want: nil},
		{name: "across month boundary", etd: date("2024-01-28"), eta: date("2024-02-03"), want: intPtr(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransitDays(tt.etd, tt.eta)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestWeek(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"2024-01-01", 1}, // Monday
		{"2024-01-07", 1}, // Sunday of the same week
		{"2024-01-08", 2},
		{"2024-07-01", 27},
		{"2024-12-31", 1}, // Jan-1-epoch rule: counted with its Thursday (2025-01-02)
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Week(*date(tt.value)))
		})
	}
}

func TestWeekPtr(t *testing.T) {
	assert.Nil(t, WeekPtr(nil))
	w := WeekPtr(date("2024-01-03"))
	require.NotNil(t, w)
	assert.Equal(t, 1, *w)
}

func intPtr(v int) *int {
	return &v
}
