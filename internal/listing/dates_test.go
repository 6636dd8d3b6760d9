package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDateText(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute", "27-12-2025, 16:59 | обновлено до последней версии", "27-12-2025, 16:59"},
		{"absolute single digits", "1-2-2025,  3:04", "1-2-2025,  3:04"},
		{"yesterday crosses year", "Вчера, 11:15 | обновлено", "31.12.2025, 11:15"},
		{"freeform", "  скоро  ", "скоро"},
		{"empty", "   ", "01.01.2026, 00:30:00"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeDateText(tc.in, now))
		})
	}
}

func TestParseDateText(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("MSK", 3*60*60)
	require.Equal(t, time.Date(2025, 12, 27, 16, 59, 0, 0, loc), ParseDateText("27-12-2025, 16:59", loc))
	require.Equal(t, time.Date(2025, 12, 31, 11, 15, 0, 0, loc), ParseDateText("31.12.2025, 11:15", loc))
	require.True(t, ParseDateText("Вчера, 11:15", loc).IsZero())
	require.True(t, ParseDateText("45-13-2025, 10:00", loc).IsZero())
	require.True(t, ParseDateText("unknown date", nil).IsZero())
	require.Equal(t, time.UTC, ParseDateText("1-1-2025, 1:1", nil).Location())
}
