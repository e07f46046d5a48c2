package scrapeurl

import (
	"testing"
	"time"
)

func TestRecordAttemptTracksCounters(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	u := ScrapeURL{Status: StatusActive}

	u.RecordAttempt(AttemptNotFound, now)
	u.RecordAttempt(AttemptFetchError, now.Add(time.Minute))
	if u.ConsecutiveFailures != 2 || u.Status != StatusError {
		t.Fatalf("unexpected state after failures: %+v", u)
	}

	u.RecordAttempt(AttemptSuccess, now.Add(2*time.Minute))
	if u.ConsecutiveFailures != 0 || u.Status != StatusActive {
		t.Fatalf("success should reset failures: %+v", u)
	}
	if u.TimesScraped != 3 || u.TimesSuccessful != 1 {
		t.Fatalf("unexpected counters: %+v", u)
	}
	if got := u.SuccessRate; got < 0.333 || got > 0.334 {
		t.Fatalf("unexpected success rate %v", got)
	}
	if !u.LastScrapedAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("unexpected last scraped at %v", u.LastScrapedAt)
	}
}

func TestRecordAttemptKeepsDoNotScrape(t *testing.T) {
	t.Parallel()

	u := ScrapeURL{Status: StatusDoNotScrape, DoNotScrape: true}
	u.RecordAttempt(AttemptSuccess, time.Now())
	if u.Status != StatusDoNotScrape {
		t.Fatalf("do-not-scrape must stick, got %s", u.Status)
	}
}
