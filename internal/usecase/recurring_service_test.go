package usecase

import (
	"context"
	"testing"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

func newRecurringService(t *testing.T, games ...game.Game) (*RecurringService, *memory.GameRepository, *memory.RecurringRepository) {
	t.Helper()
	gameRepo := memory.NewGameRepository(games...)
	recurringRepo := memory.NewRecurringRepository()
	svc := NewRecurringService(gameRepo, recurringRepo, memory.NewVenueRepository(testVenues()), &id.Sequence{Prefix: "rg-"}, 2, logging.NewNop())
	svc.now = fixedClock
	return svc, gameRepo, recurringRepo
}

func TestRecurringService_BootstrapCreatesAndAssignsTemplates(t *testing.T) {
	t.Parallel()

	svc, games, templates := newRecurringService(t, mondayHistory()...)
	ctx := context.Background()

	res, err := svc.Bootstrap(ctx, BootstrapInput{EntityID: testEntityID})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if res.Preview || res.TemplatesFound != 2 || res.GamesAssigned != 12 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Venues) != 2 || res.Venues[0].VenueID != "v-main" || res.Venues[1].GamesConsidered != 0 {
		t.Fatalf("expected every entity venue reported, got %+v", res.Venues)
	}

	stored, _ := templates.ListByVenue(ctx, "v-main")
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored templates, got %d", len(stored))
	}
	occurrences := map[string]int{}
	for _, tmpl := range stored {
		occurrences[tmpl.Name] = tmpl.TotalOccurrences
	}
	if occurrences["Deepstack"] != 7 || occurrences["High Roller"] != 5 {
		t.Fatalf("unexpected occurrence counts: %v", occurrences)
	}

	first, _, _ := games.FindByID(ctx, "low-0")
	last, _, _ := games.FindByID(ctx, "low-6")
	if first.RecurringGameAssignmentStatus != game.AssignmentAutoAssigned || first.InstanceNumber == nil || *first.InstanceNumber != 1 {
		t.Fatalf("unexpected first instance: status=%s instance=%v", first.RecurringGameAssignmentStatus, first.InstanceNumber)
	}
	if last.InstanceNumber == nil || *last.InstanceNumber != 7 || !last.WasScheduledInstance {
		t.Fatalf("unexpected last instance: %v", last.InstanceNumber)
	}
	if *first.RecurringGameID != *last.RecurringGameID {
		t.Fatalf("games of one cluster must share a template")
	}
}

func TestRecurringService_BootstrapIsRepeatable(t *testing.T) {
	t.Parallel()

	svc, _, templates := newRecurringService(t, mondayHistory()...)
	ctx := context.Background()

	if _, err := svc.Bootstrap(ctx, BootstrapInput{VenueID: "v-main"}); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	res, err := svc.Bootstrap(ctx, BootstrapInput{VenueID: "v-main"})
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	for _, tmpl := range res.Venues[0].Templates {
		if tmpl.Created || tmpl.RecurringGameID == "" {
			t.Fatalf("second run must reuse templates, got %+v", tmpl)
		}
	}
	stored, _ := templates.ListByVenue(ctx, "v-main")
	if len(stored) != 2 {
		t.Fatalf("expected templates reused, found %d", len(stored))
	}
}

func TestRecurringService_BootstrapPreviewWritesNothing(t *testing.T) {
	t.Parallel()

	svc, games, templates := newRecurringService(t, mondayHistory()...)
	ctx := context.Background()

	res, err := svc.Bootstrap(ctx, BootstrapInput{VenueID: "v-main", Preview: true})
	if err != nil {
		t.Fatalf("bootstrap preview: %v", err)
	}
	if !res.Preview || res.TemplatesFound != 2 || res.GamesAssigned != 0 {
		t.Fatalf("unexpected preview result: %+v", res)
	}
	if stored, _ := templates.ListByVenue(ctx, "v-main"); len(stored) != 0 {
		t.Fatalf("preview must not create templates, found %d", len(stored))
	}
	g, _, _ := games.FindByID(ctx, "low-0")
	if g.RecurringGameID != nil {
		t.Fatalf("preview must not assign games")
	}
}

func TestRecurringService_BootstrapKeepsManualAssignments(t *testing.T) {
	t.Parallel()

	history := mondayHistory()
	manualTemplate := "rg-manual"
	history[2].RecurringGameID = &manualTemplate
	history[2].RecurringGameAssignmentStatus = game.AssignmentManual
	svc, games, _ := newRecurringService(t, history...)
	ctx := context.Background()

	res, err := svc.Bootstrap(ctx, BootstrapInput{VenueID: "v-main"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if res.GamesAssigned != 11 {
		t.Fatalf("expected the manual game skipped, assigned=%d", res.GamesAssigned)
	}
	g, _, _ := games.FindByID(ctx, history[2].ID)
	if g.RecurringGameID == nil || *g.RecurringGameID != manualTemplate {
		t.Fatalf("manual assignment overwritten: %v", g.RecurringGameID)
	}
}

func TestRecurringService_BootstrapRequiresScope(t *testing.T) {
	t.Parallel()

	svc, _, _ := newRecurringService(t)
	if _, err := svc.Bootstrap(context.Background(), BootstrapInput{}); err == nil {
		t.Fatalf("expected an error without entity or venue")
	}
}
