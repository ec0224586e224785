package document

import (
	"fmt"
	"strings"

	"github.com/nimburion/taskmanager/pkg/repository"
)

// SortSpecBuilder turns client supplied sort tokens into a SortSpec. Each token is an
// alias optionally prefixed by '+' (ascending, the default) or '-' (descending).
type SortSpecBuilder struct {
	aliases map[string]string
}

// NewSortSpecBuilder creates a builder resolving tokens through aliases (alias -> document path).
func NewSortSpecBuilder(aliases map[string]string) *SortSpecBuilder {
	copied := make(map[string]string, len(aliases))
	for alias, path := range aliases {
		copied[alias] = path
	}
	return &SortSpecBuilder{aliases: copied}
}

// Resolve returns the document path for alias.
func (b *SortSpecBuilder) Resolve(alias string) (string, bool) {
	path, ok := b.aliases[alias]
	return path, ok
}

// Build resolves tokens in order. Duplicates are kept and not collapsed; when a path repeats, the
// store applies the last occurrence.
// An unknown or empty token fails with the code bad_order[i].
func (b *SortSpecBuilder) Build(tokens []string) (SortSpec, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	spec := make(SortSpec, 0, len(tokens))
	for i, token := range tokens {
		order := SortAsc
		alias := strings.TrimSpace(token)
		switch {
		case strings.HasPrefix(alias, "-"):
			order = SortDesc
			alias = alias[1:]
		case strings.HasPrefix(alias, "+"):
			alias = alias[1:]
		}
		path, ok := b.aliases[alias]
		if alias == "" || !ok {
			return nil, repository.NewValidationError(
				fmt.Sprintf("bad_order[%d]", i),
				fmt.Sprintf("the field %q can not be used to sort", token),
			)
		}
		spec = append(spec, Sort{Field: path, Order: order})
	}
	return spec, nil
}

// BuildWithDefault resolves tokens like Build. Without tokens it returns defaults; otherwise every
// tiebreaker path missing from the resolved spec is appended ascending so paging stays deterministic.
func (b *SortSpecBuilder) BuildWithDefault(tokens []string, defaults SortSpec, tiebreakers ...string) (SortSpec, error) {
	if len(tokens) == 0 {
		out := make(SortSpec, len(defaults))
		copy(out, defaults)
		return out, nil
	}
	spec, err := b.Build(tokens)
	if err != nil {
		return nil, err
	}
	for _, path := range tiebreakers {
		if !spec.Has(path) {
			spec = append(spec, Sort{Field: path, Order: SortAsc})
		}
	}
	return spec, nil
}

// ParseOrder splits a comma separated order parameter. Empty tokens are kept so that
// Build can report their position.
func ParseOrder(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
