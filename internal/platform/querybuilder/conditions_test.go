package querybuilder

import "testing"

func TestSelectWithRangeAndOffset(t *testing.T) {
	t.Parallel()

	query, args, err := Select("tournament_id").
		From("games").
		Where(Eq("entity_id", "e1"), Gte("tournament_id", int64(10)), Lte("tournament_id", int64(20))).
		OrderBy("tournament_id ASC").
		Limit(50).
		Offset(100).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	want := "SELECT tournament_id FROM games WHERE entity_id = $1 AND tournament_id >= $2 AND tournament_id <= $3 ORDER BY tournament_id ASC LIMIT 50 OFFSET 100"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 3 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInAndOr(t *testing.T) {
	t.Parallel()

	query, args, err := Select("*").
		From("scrape_urls").
		Where(
			In("game_status", Strings([]string{"RUNNING", "SCHEDULED"})),
			Or(IsNull("last_scraped_at"), Lt("last_scraped_at", "2024-01-01")),
		).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	want := "SELECT * FROM scrape_urls WHERE game_status IN ($1, $2) AND (last_scraped_at IS NULL OR last_scraped_at < $3)"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 3 || args[2] != "2024-01-01" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestEmptyOrMatchesNothing(t *testing.T) {
	t.Parallel()

	query, _, err := Select("id").From("games").Where(Or()).ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}
	if query != "SELECT id FROM games WHERE 1=0" {
		t.Fatalf("unexpected query: %s", query)
	}
}
