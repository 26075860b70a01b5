package store

import (
	"context"
	"errors"
	"testing"
)

func validQuestion() *Question {
	return &Question{
		Title:   "Capital of France",
		Type:    SingleChoice,
		Content: "Which city is the capital of France?",
		Options: []Option{
			{Content: "Paris", IsCorrect: true},
			{Content: "London"},
			{Content: "Berlin"},
		},
		Difficulty: DifficultyEasy,
		Tags:       []string{"geography"},
	}
}

func TestValidateQuestion(t *testing.T) {
	if errs := ValidateQuestion(validQuestion()); errs != nil {
		t.Fatalf("valid question rejected: %v", errs)
	}

	cases := []struct {
		name   string
		mutate func(*Question)
		field  string
	}{
		{"missing title", func(q *Question) { q.Title = "  " }, "title"},
		{"missing type", func(q *Question) { q.Type = "" }, "type"},
		{"bad type", func(q *Question) { q.Type = "TRUE_FALSE" }, "type"},
		{"missing content", func(q *Question) { q.Content = "" }, "content"},
		{"one option", func(q *Question) { q.Options = q.Options[:1] }, "options"},
		{"blank option", func(q *Question) { q.Options[1].Content = " " }, "options"},
		{"no correct option", func(q *Question) { q.Options[0].IsCorrect = false }, "answer"},
		{"single choice two correct", func(q *Question) { q.Options[1].IsCorrect = true }, "answer"},
		{"missing difficulty", func(q *Question) { q.Difficulty = "" }, "difficulty"},
		{"bad difficulty", func(q *Question) { q.Difficulty = "IMPOSSIBLE" }, "difficulty"},
		{"no tags", func(q *Question) { q.Tags = nil }, "tags"},
		{"blank tag", func(q *Question) { q.Tags = []string{""} }, "tags"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := validQuestion()
			tc.mutate(q)
			errs := ValidateQuestion(q)
			if errs == nil {
				t.Fatal("expected validation errors")
			}
			if len(errs[tc.field]) == 0 {
				t.Fatalf("no error on field %q: %v", tc.field, errs)
			}
		})
	}
}

func TestMultipleChoiceAllowsSeveralCorrect(t *testing.T) {
	q := validQuestion()
	q.Type = MultipleChoice
	q.Options[1].IsCorrect = true
	if errs := ValidateQuestion(q); errs != nil {
		t.Fatalf("multiple correct options rejected: %v", errs)
	}
}

func seedQuestions(t *testing.T, s QuestionStore) []*Question {
	t.Helper()
	ctx := context.Background()
	qs := []*Question{
		{
			Title: "Capital of France", Type: SingleChoice,
			Content:    "Which city is the capital of France?",
			Options:    []Option{{Content: "Paris", IsCorrect: true}, {Content: "Rome"}},
			Difficulty: DifficultyEasy, Tags: []string{"geography"},
		},
		{
			Title: "Prime numbers", Type: MultipleChoice,
			Content:    "Select every prime number.",
			Options:    []Option{{Content: "2", IsCorrect: true}, {Content: "3", IsCorrect: true}, {Content: "4"}},
			Difficulty: DifficultyMedium, Tags: []string{"math"},
		},
		{
			Title: "Longest river", Type: SingleChoice,
			Content:    "Which river is the longest?",
			Options:    []Option{{Content: "Nile", IsCorrect: true}, {Content: "Amazon"}},
			Difficulty: DifficultyHard, Tags: []string{"geography", "nature"},
		},
	}
	for _, q := range qs {
		if err := s.Create(ctx, q); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	return qs
}

func TestMemoryQuestionStoreListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQuestionStore()
	seedQuestions(t, s)

	cases := []struct {
		name   string
		filter ListFilter
		want   int
	}{
		{"no filter", ListFilter{}, 3},
		{"by type", ListFilter{Type: SingleChoice}, 2},
		{"by difficulty", ListFilter{Difficulty: DifficultyMedium}, 1},
		{"by tag", ListFilter{Tag: "geography"}, 2},
		{"search title", ListFilter{Search: "capital"}, 1},
		{"search content", ListFilter{Search: "PRIME"}, 1},
		{"combined", ListFilter{Type: SingleChoice, Tag: "nature"}, 1},
		{"no match", ListFilter{Tag: "history"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got %d questions, want %d", len(got), tc.want)
			}
		})
	}
}

func TestMemoryQuestionStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQuestionStore()

	q := validQuestion()
	if err := s.Create(ctx, q); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, err := s.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != q.Title {
		t.Fatalf("Get returned %+v", got)
	}

	upd := validQuestion()
	upd.Title = "Updated title"
	after, err := s.Update(ctx, q.ID, upd)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if after.Title != "Updated title" || after.ID != q.ID {
		t.Fatalf("Update returned %+v", after)
	}
	if !after.CreatedAt.Equal(got.CreatedAt) {
		t.Error("Update changed CreatedAt")
	}

	if _, err := s.Delete(ctx, q.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, q.ID); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	if _, err := s.Update(ctx, q.ID, upd); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("Update after delete: %v", err)
	}
	if _, err := s.Delete(ctx, q.ID); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("double Delete: %v", err)
	}
}

func TestMemoryQuestionStoreBulkUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQuestionStore()
	existing := seedQuestions(t, s)

	fresh := validQuestion()
	update := validQuestion()
	update.ID = existing[0].ID
	update.Title = "Replaced"

	res, err := s.BulkUpsert(ctx, []*Question{fresh, update})
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if res.Matched != 1 || res.Upserted != 1 {
		t.Fatalf("result = %+v, want 1 matched / 1 upserted", res)
	}

	got, err := s.Get(ctx, existing[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Replaced" {
		t.Fatalf("matched question not updated: %+v", got)
	}
}

func TestMemoryQuestionStoreRandom(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQuestionStore()
	seedQuestions(t, s)

	got, err := s.Random(ctx, 2)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d questions, want 2", len(got))
	}

	// Asking for more than the store holds returns everything.
	got, err = s.Random(ctx, 50)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d questions, want 3", len(got))
	}
}

func TestMemoryQuestionStoreTags(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryQuestionStore()
	seedQuestions(t, s)

	tags, err := s.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	want := []string{"geography", "math", "nature"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}
}
