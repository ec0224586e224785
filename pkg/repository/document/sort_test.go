package document

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nimburion/taskmanager/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
)

var testAliases = map[string]string{
	"id":          "_id",
	"_id":         "_id",
	"goalName":    "goal.name",
	"goal.name":   "goal.name",
	"creationTs":  "_creationTs",
	"_creationTs": "_creationTs",
	"index":       "transactionsIndex",
}

func TestSortSpecBuilder_Build(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   SortSpec
		code   string
	}{
		{name: "no tokens", tokens: nil, want: nil},
		{
			name:   "prefixes",
			tokens: []string{"goalName", "-creationTs", "+id"},
			want: SortSpec{
				{Field: "goal.name", Order: SortAsc},
				{Field: "_creationTs", Order: SortDesc},
				{Field: "_id", Order: SortAsc},
			},
		},
		{
			name:   "decoded plus sign",
			tokens: []string{" goalName"},
			want:   SortSpec{{Field: "goal.name", Order: SortAsc}},
		},
		{
			name:   "duplicates kept",
			tokens: []string{"-id", "_id"},
			want:   SortSpec{{Field: "_id", Order: SortDesc}, {Field: "_id", Order: SortAsc}},
		},
		{name: "unknown alias", tokens: []string{"goalName", "undefined"}, code: "bad_order[1]"},
		{name: "empty token", tokens: []string{"", "id"}, code: "bad_order[0]"},
		{name: "bare sign", tokens: []string{"-"}, code: "bad_order[0]"},
	}

	b := NewSortSpecBuilder(testAliases)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(tt.tokens)
			if tt.code != "" {
				var ve *repository.ValidationError
				if !errors.As(err, &ve) || ve.Code != tt.code {
					t.Fatalf("expected code %s, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Build() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSortSpecBuilder_BuildWithDefault(t *testing.T) {
	b := NewSortSpecBuilder(testAliases)
	defaults := SortSpec{
		{Field: "_creationTs", Order: SortAsc},
		{Field: "_id", Order: SortAsc},
		{Field: "transactionsIndex", Order: SortAsc},
	}

	got, err := b.BuildWithDefault(nil, defaults, "_id", "transactionsIndex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, defaults) {
		t.Fatalf("expected defaults, got %#v", got)
	}

	got, err = b.BuildWithDefault([]string{"-goalName", "index"}, defaults, "_id", "transactionsIndex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SortSpec{
		{Field: "goal.name", Order: SortDesc},
		{Field: "transactionsIndex", Order: SortAsc},
		{Field: "_id", Order: SortAsc},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildWithDefault() = %#v, want %#v", got, want)
	}

	if _, err := b.BuildWithDefault([]string{"nope"}, defaults); !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSortSpec_Document(t *testing.T) {
	spec := SortSpec{{Field: "b", Order: SortDesc}, {Field: "a", Order: SortAsc}}
	want := bson.D{{Key: "b", Value: -1}, {Key: "a", Value: 1}}
	if got := spec.Document(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Document() = %#v, want %#v", got, want)
	}
	if SortSpec(nil).Document() != nil {
		t.Fatal("empty spec must render as nil")
	}
}

func TestSortSpecBuilder_RepeatedPathKeepsLastOccurrenceLast(t *testing.T) {
	spec, err := NewSortSpecBuilder(testAliases).Build([]string{"creationTs", "id", "-_creationTs"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := bson.D{
		{Key: "_creationTs", Value: 1},
		{Key: "_id", Value: 1},
		{Key: "_creationTs", Value: -1},
	}
	if got := spec.Document(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Document() = %#v, want %#v", got, want)
	}
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "  ", want: nil},
		{raw: "a", want: []string{"a"}},
		{raw: "-a,+b", want: []string{"-a", "+b"}},
		{raw: "a,,b", want: []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		if got := ParseOrder(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseOrder(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestProperty_SortAliasesAreEquivalent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	b := NewSortSpecBuilder(testAliases)

	pairs := [][2]string{{"id", "_id"}, {"goalName", "goal.name"}, {"creationTs", "_creationTs"}}

	properties.Property("aliases of the same path produce the same spec", prop.ForAll(
		func(pair int, desc bool) bool {
			prefix := "+"
			if desc {
				prefix = "-"
			}
			left, errL := b.Build([]string{prefix + pairs[pair][0]})
			right, errR := b.Build([]string{prefix + pairs[pair][1]})
			return errL == nil && errR == nil && reflect.DeepEqual(left, right)
		},
		gen.IntRange(0, len(pairs)-1),
		gen.Bool(),
	))

	properties.Property("spec length equals token count", prop.ForAll(
		func(n int) bool {
			tokens := make([]string, n)
			for i := range tokens {
				tokens[i] = "id"
			}
			spec, err := b.Build(tokens)
			return err == nil && len(spec) == n
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
