package app

import (
	"testing"
	"time"

	"github.com/payflow/approval-service/internal/domain"
)

func TestNextDueDate(t *testing.T) {
	cases := []struct {
		name   string
		freq   domain.Frequency
		from   time.Time
		want   time.Time
	}{
		{name: "daily", freq: domain.FrequencyDaily, from: date(2026, time.March, 10), want: date(2026, time.March, 11)},
		{name: "daily year end", freq: domain.FrequencyDaily, from: date(2026, time.December, 31), want: date(2027, time.January, 1)},
		{name: "weekly", freq: domain.FrequencyWeekly, from: date(2026, time.February, 25), want: date(2026, time.March, 4)},
		{name: "monthly same day", freq: domain.FrequencyMonthly, from: date(2026, time.January, 15), want: date(2026, time.February, 15)},
		{name: "monthly 31st into 30 day month", freq: domain.FrequencyMonthly, from: date(2026, time.March, 31), want: date(2026, time.April, 30)},
		{name: "monthly 31st into february", freq: domain.FrequencyMonthly, from: date(2026, time.January, 31), want: date(2026, time.February, 28)},
		{name: "monthly 29th into leap february", freq: domain.FrequencyMonthly, from: date(2028, time.January, 29), want: date(2028, time.February, 29)},
		{name: "monthly keeps clamped day", freq: domain.FrequencyMonthly, from: date(2026, time.February, 28), want: date(2026, time.March, 28)},
		{name: "monthly after move to the 10th", freq: domain.FrequencyMonthly, from: date(2026, time.March, 10), want: date(2026, time.April, 10)},
		{name: "monthly 30th into february", freq: domain.FrequencyMonthly, from: date(2026, time.January, 30), want: date(2026, time.February, 28)},
		{name: "monthly december rollover", freq: domain.FrequencyMonthly, from: date(2026, time.December, 31), want: date(2027, time.January, 31)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl := domain.RecurringTemplate{Frequency: tc.freq}
			got, ok := NextDueDate(tpl, tc.from)
			if !ok {
				t.Fatalf("expected frequency %q to be known", tc.freq)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want.Format(domain.DateLayout), got.Format(domain.DateLayout))
			}
		})
	}
}

func TestNextDueDate_UnknownFrequency(t *testing.T) {
	if _, ok := NextDueDate(domain.RecurringTemplate{Frequency: "yearly"}, date(2026, time.March, 1)); ok {
		t.Fatalf("expected unknown frequency to be rejected")
	}
}

func TestDateOf(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	got := DateOf(time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC), lagos)
	if !got.Equal(date(2026, time.March, 11)) {
		t.Fatalf("expected 2026-03-11, got %s", got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC midnight, got %s", got.Location())
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-02-28")
	if err != nil || !got.Equal(date(2026, time.February, 28)) {
		t.Fatalf("unexpected parse result %s err=%v", got, err)
	}
	if _, err := ParseDate("28/02/2026"); err == nil {
		t.Fatalf("expected layout error")
	}
}
