package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/tahcohcat/ascended-progress/internal/models"
)

func TestApplyEvent_SetEventsAreIdempotent(t *testing.T) {
	p := models.NewRoomProgress(1, 1)

	for i := 0; i < 3; i++ {
		if err := ApplyEvent(&p, Event{Type: EventPuzzleSolved, ID: "p1"}); err != nil {
			t.Fatalf("ApplyEvent() error: %v", err)
		}
	}
	if n := p.RoomData.PuzzlesCompleted.Len(); n != 1 {
		t.Errorf("puzzles = %d, want 1", n)
	}
	if p.CompletionStatus != models.StatusInProgress {
		t.Errorf("status = %q, want in_progress after first event", p.CompletionStatus)
	}
}

func TestApplyEvent_Mutations(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, p models.RoomProgress)
	}{
		{"challenge", Event{Type: EventChallengeCompleted, ID: "c"}, func(t *testing.T, p models.RoomProgress) {
			if !p.RoomData.ChallengesSolved.Has("c") {
				t.Error("challenge not recorded")
			}
		}},
		{"secret", Event{Type: EventSecretFound, ID: "s"}, func(t *testing.T, p models.RoomProgress) {
			if !p.RoomData.SecretsFound.Has("s") {
				t.Error("secret not recorded")
			}
		}},
		{"objective", Event{Type: EventObjectiveCompleted, ID: "o"}, func(t *testing.T, p models.RoomProgress) {
			if !p.RoomData.ObjectivesCompleted.Has("o") {
				t.Error("objective not recorded")
			}
		}},
		{"item", Event{Type: EventItemCollected, ID: "key"}, func(t *testing.T, p models.RoomProgress) {
			if !p.RoomData.ItemsCollected.Has("key") {
				t.Error("item not recorded")
			}
		}},
		{"hint default amount", Event{Type: EventHintUsed}, func(t *testing.T, p models.RoomProgress) {
			if p.RoomData.HintsUsed != 3 {
				t.Errorf("hints = %d, want 3", p.RoomData.HintsUsed)
			}
		}},
		{"deaths by amount", Event{Type: EventDeath, Amount: 2}, func(t *testing.T, p models.RoomProgress) {
			if p.RoomData.Deaths != 3 {
				t.Errorf("deaths = %d, want 3", p.RoomData.Deaths)
			}
		}},
		{"exploration keeps max", Event{Type: EventExplorationUpdate, Percentage: 10}, func(t *testing.T, p models.RoomProgress) {
			if p.RoomData.ExplorationPercentage != 30 {
				t.Errorf("exploration = %v, want 30", p.RoomData.ExplorationPercentage)
			}
		}},
		{"checkpoint keeps max", Event{Type: EventCheckpointReached, Amount: 4}, func(t *testing.T, p models.RoomProgress) {
			if p.RoomData.CurrentCheckpoint != 4 {
				t.Errorf("checkpoint = %d, want 4", p.RoomData.CurrentCheckpoint)
			}
		}},
		{"score raises best", Event{Type: EventScoreUpdate, Amount: 40}, func(t *testing.T, p models.RoomProgress) {
			if p.Score != 40 || p.BestScore != 50 {
				t.Errorf("score/best = %d/%d, want 40/50", p.Score, p.BestScore)
			}
		}},
		{"time accumulates", Event{Type: EventTimeSpent, Amount: 30}, func(t *testing.T, p models.RoomProgress) {
			if p.TimeSpentSeconds != 130 {
				t.Errorf("time = %d, want 130", p.TimeSpentSeconds)
			}
		}},
		{"position replaces", Event{Type: EventPositionUpdate, Data: models.RawJSON(`{"x":3}`)}, func(t *testing.T, p models.RoomProgress) {
			if string(p.RoomData.LastPosition) != `{"x":3}` {
				t.Errorf("position = %s", p.RoomData.LastPosition)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.NewRoomProgress(1, 2)
			p.CompletionStatus = models.StatusInProgress
			p.TimeSpentSeconds = 100
			p.BestScore = 50
			p.RoomData.HintsUsed = 2
			p.RoomData.Deaths = 1
			p.RoomData.ExplorationPercentage = 30
			p.RoomData.CurrentCheckpoint = 2

			if err := ApplyEvent(&p, tt.event); err != nil {
				t.Fatalf("ApplyEvent() error: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestApplyEvent_RejectsInvalid(t *testing.T) {
	tests := []Event{
		{Type: "teleported"},
		{Type: EventPuzzleSolved},
		{Type: EventExplorationUpdate, Percentage: 120},
		{Type: EventDeath, Amount: -1},
		{Type: EventStateUpdate},
	}
	for _, ev := range tests {
		t.Run(string(ev.Type), func(t *testing.T) {
			p := models.NewRoomProgress(1, 1)
			before := p.Clone()
			err := ApplyEvent(&p, ev)
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Fatalf("ApplyEvent() error = %v, want ErrInvalidInput", err)
			}
			if !p.Equal(before) {
				t.Error("rejected event mutated the record")
			}
		})
	}
}

func TestApplyEvent_ZeroValueRecord(t *testing.T) {
	var p models.RoomProgress
	if err := ApplyEvent(&p, Event{Type: EventSecretFound, ID: "s1"}); err != nil {
		t.Fatalf("ApplyEvent() error: %v", err)
	}
	if !p.RoomData.SecretsFound.Has("s1") {
		t.Error("secret not recorded on zero-value record")
	}
}

func TestApplyEvent_PartiallyDecodedSets(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		has   func(models.RoomData) bool
	}{
		{"secret", Event{Type: EventSecretFound, ID: "s1"}, func(d models.RoomData) bool { return d.SecretsFound.Has("s1") }},
		{"challenge", Event{Type: EventChallengeCompleted, ID: "c1"}, func(d models.RoomData) bool { return d.ChallengesSolved.Has("c1") }},
		{"objective", Event{Type: EventObjectiveCompleted, ID: "o1"}, func(d models.RoomData) bool { return d.ObjectivesCompleted.Has("o1") }},
		{"item", Event{Type: EventItemCollected, ID: "i1"}, func(d models.RoomData) bool { return d.ItemsCollected.Has("i1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// only puzzles_completed was present in the decoded payload
			p := models.RoomProgress{RoomData: models.RoomData{PuzzlesCompleted: models.NewIDSet("p1")}}
			if err := ApplyEvent(&p, tt.event); err != nil {
				t.Fatalf("ApplyEvent() error: %v", err)
			}
			if !tt.has(p.RoomData) {
				t.Errorf("%s not recorded", tt.name)
			}
			if !p.RoomData.PuzzlesCompleted.Has("p1") {
				t.Error("existing puzzle dropped")
			}
		})
	}
}

func TestTransition(t *testing.T) {
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	t.Run("threshold completes and counts an attempt", func(t *testing.T) {
		prev := models.NewRoomProgress(1, 1)
		prev.CompletionStatus = models.StatusInProgress
		next := prev.Clone()
		next.CompletionPercentage = 95

		if !Transition(&prev, &next, DefaultCompletionThreshold, now) {
			t.Fatal("expected a transition into completed")
		}
		if next.CompletionStatus != models.StatusCompleted || next.Attempts != 1 {
			t.Errorf("status/attempts = %q/%d, want completed/1", next.CompletionStatus, next.Attempts)
		}
		if next.CompletedAt == nil || !next.CompletedAt.Equal(now) {
			t.Errorf("completed at = %v, want %v", next.CompletedAt, now)
		}
	})

	t.Run("already completed does not count again", func(t *testing.T) {
		prev := models.NewRoomProgress(1, 1)
		prev.CompletionStatus = models.StatusCompleted
		prev.Attempts = 1
		next := prev.Clone()
		next.CompletionPercentage = 100

		if Transition(&prev, &next, DefaultCompletionThreshold, now) {
			t.Error("unexpected transition")
		}
		if next.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", next.Attempts)
		}
	})

	t.Run("client already counted the attempt", func(t *testing.T) {
		next := models.NewRoomProgress(1, 1)
		next.CompletionStatus = models.StatusCompleted
		next.Attempts = 1

		if !Transition(nil, &next, DefaultCompletionThreshold, now) {
			t.Fatal("expected a transition into completed")
		}
		if next.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", next.Attempts)
		}
	})

	t.Run("below threshold stays in progress", func(t *testing.T) {
		next := models.NewRoomProgress(1, 1)
		next.CompletionPercentage = 60
		next.TimeSpentSeconds = 5

		if Transition(nil, &next, DefaultCompletionThreshold, now) {
			t.Error("unexpected transition")
		}
		if next.CompletionStatus != models.StatusInProgress {
			t.Errorf("status = %q, want in_progress", next.CompletionStatus)
		}
	})
}

func TestValidate(t *testing.T) {
	ok := models.NewRoomProgress(1, 3)
	if err := Validate(ok); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	bad := []func(p *models.RoomProgress){
		func(p *models.RoomProgress) { p.RoomNumber = 0 },
		func(p *models.RoomProgress) { p.RoomNumber = 6 },
		func(p *models.RoomProgress) { p.CompletionStatus = "done" },
		func(p *models.RoomProgress) { p.TimeSpentSeconds = -1 },
		func(p *models.RoomProgress) { p.RoomData.HintsUsed = -2 },
		func(p *models.RoomProgress) { p.Totals.Secrets = -1 },
		func(p *models.RoomProgress) { p.RoomData.ExplorationPercentage = 101 },
	}
	for i, mutate := range bad {
		p := ok.Clone()
		mutate(&p)
		var inputErr *models.InputError
		if err := Validate(p); !errors.As(err, &inputErr) {
			t.Errorf("case %d: Validate() = %v, want *InputError", i, err)
		}
	}
}
