package postgres

import (
	"testing"

	"github.com/lib/pq"
)

func TestIsBindParameterMismatch(t *testing.T) {
	t.Run("matches bind mismatch error", func(t *testing.T) {
		err := fakeErr("pq: bind message supplies 2 parameters, but prepared statement \"\" requires 1 (08P01)")
		if !isBindParameterMismatch(err) {
			t.Fatalf("expected true for bind mismatch error")
		}
	})

	t.Run("ignores unrelated error", func(t *testing.T) {
		err := fakeErr("pq: relation games does not exist")
		if isBindParameterMismatch(err) {
			t.Fatalf("expected false for unrelated error")
		}
	})
}

func TestIsUnnamedPreparedStatementMissing(t *testing.T) {
	t.Run("matches statement missing message", func(t *testing.T) {
		err := fakeErr("pq: unnamed prepared statement does not exist (26000)")
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for statement missing error")
		}
	})

	t.Run("matches by 26000 code", func(t *testing.T) {
		err := fakeErr("pq: prepared statement missing (26000)")
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for 26000 prepared statement error")
		}
	})

	t.Run("ignores unrelated error", func(t *testing.T) {
		err := fakeErr("pq: relation scrape_urls does not exist")
		if isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected false for unrelated error")
		}
	})
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("expected unique violation for 23505")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(fakeErr("duplicate key")) {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestTablesWithDefaults(t *testing.T) {
	got := Tables{Games: " ingest_games "}.WithDefaults()
	if got.Games != "ingest_games" {
		t.Fatalf("override lost: %q", got.Games)
	}
	if got.ScrapeURLs != "scrape_urls" || got.Series != "tournament_series" {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestNullableHelpers(t *testing.T) {
	if optionalString("  ") != nil {
		t.Fatalf("blank string must map to NULL")
	}
	if v := optionalString(" x "); v == nil || *v != "x" {
		t.Fatalf("unexpected optional string %v", v)
	}
	n := 4
	if got := nullInt(intParam(&n)); got == nil || *got != 4 {
		t.Fatalf("int round trip failed: %v", got)
	}
	if nullFloat(floatParam(nil)) != nil {
		t.Fatalf("nil float must stay nil")
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
