package normalize

import (
	"testing"
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

func intp(v int) *int { return &v }

func timep(t time.Time) *time.Time { return &t }

func TestInferStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   StatusInput
		want model.Status
	}{
		{
			name: "explicit active",
			in:   StatusInput{SourceStatus: "ACTIVE", Now: now},
			want: model.StatusActive,
		},
		{
			name: "explicit sold",
			in:   StatusInput{SourceStatus: "SOLD", Now: now},
			want: model.StatusSold,
		},
		{
			name: "explicit no sale",
			in:   StatusInput{SourceStatus: "NO_SALE", Now: now},
			want: model.StatusUnsold,
		},
		{
			name: "lowercase source status",
			in:   StatusInput{SourceStatus: " active ", Now: now},
			want: model.StatusActive,
		},
		{
			name: "ended without bid",
			in:   StatusInput{SourceStatus: "ENDED", Now: now},
			want: model.StatusUnsold,
		},
		{
			name: "ended with positive bid",
			in:   StatusInput{SourceStatus: "ENDED", CurrentBid: intp(100), Now: now},
			want: model.StatusSold,
		},
		{
			name: "ended with zero bid",
			in:   StatusInput{SourceStatus: "ENDED", CurrentBid: intp(0), Now: now},
			want: model.StatusUnsold,
		},
		{
			name: "ended with sold phrase",
			in:   StatusInput{SourceStatus: "ENDED", PriceText: "Sold for $120,000", Now: now},
			want: model.StatusSold,
		},
		{
			name: "ended with winning bid phrase",
			in:   StatusInput{SourceStatus: "ENDED", PriceText: "Winning bid £85,000", Now: now},
			want: model.StatusSold,
		},
		{
			name: "sold indicator does not match unsold",
			in:   StatusInput{SourceStatus: "ENDED", PriceText: "Unsold at $90,000", Now: now},
			want: model.StatusUnsold,
		},
		{
			name: "sold indicator does not match no sale",
			in:   StatusInput{SourceStatus: "ENDED", PriceText: "No sale, high bid $70,000", Now: now},
			want: model.StatusUnsold,
		},
		{
			name: "delist phrase wins over end time",
			in: StatusInput{
				PriceText: "Withdrawn by seller",
				EndTime:   timep(now.Add(-48 * time.Hour)),
				Now:       now,
			},
			want: model.StatusDelisted,
		},
		{
			name: "past end time with bid resolves sold",
			in: StatusInput{
				CurrentBid: intp(45000),
				EndTime:    timep(now.Add(-24 * time.Hour)),
				Now:        now,
			},
			want: model.StatusSold,
		},
		{
			name: "past end time without bid resolves unsold",
			in: StatusInput{
				EndTime: timep(now.Add(-24 * time.Hour)),
				Now:     now,
			},
			want: model.StatusUnsold,
		},
		{
			name: "end time within grace is not concluded",
			in: StatusInput{
				CurrentBid: intp(45000),
				EndTime:    timep(now.Add(-30 * time.Second)),
				Now:        now,
			},
			want: model.StatusActive,
		},
		{
			name: "future end time with bid is active",
			in: StatusInput{
				CurrentBid: intp(500),
				EndTime:    timep(now.Add(2 * time.Hour)),
				Now:        now,
			},
			want: model.StatusActive,
		},
		{
			name: "no signal defaults to unsold",
			in:   StatusInput{Now: now},
			want: model.StatusUnsold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferStatus(tt.in); got != tt.want {
				t.Errorf("InferStatus(%+v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
