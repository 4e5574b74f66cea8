package artifact

import (
	"strings"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/normalize"
)

// SelectionPolicy decides which entries get a vector and what text is
// embedded for them.
type SelectionPolicy struct {
	// MinPopularity maps a category to the popularity an entry needs to be
	// embedded. Categories missing from the map are never embedded.
	// Nil means DefaultPolicy's thresholds.
	MinPopularity map[catalog.Category]int64

	// MaxAliases is the number of ASCII aliases appended to the embedding
	// text. Zero means 5; negative means none.
	MaxAliases int
}

// DefaultPolicy embeds every general entry, copyright and character
// entries with popularity at least 100, and meta entries with popularity
// at least 1000. Artist names are left to exact and alias lookup.
func DefaultPolicy() SelectionPolicy {
	return SelectionPolicy{
		MinPopularity: defaultFloors(),
		MaxAliases:    defaultMaxAliases,
	}
}

const defaultMaxAliases = 5

func defaultFloors() map[catalog.Category]int64 {
	return map[catalog.Category]int64{
		catalog.General:   0,
		catalog.Copyright: 100,
		catalog.Character: 100,
		catalog.Meta:      1000,
	}
}

// sharedFloors backs policies with a nil MinPopularity. Read only.
var sharedFloors = defaultFloors()

func (p *SelectionPolicy) setDefaults() {
	if p.MinPopularity == nil {
		p.MinPopularity = defaultFloors()
	}
	if p.MaxAliases == 0 {
		p.MaxAliases = defaultMaxAliases
	}
}

func (p *SelectionPolicy) floors() map[catalog.Category]int64 {
	if p.MinPopularity == nil {
		return sharedFloors
	}
	return p.MinPopularity
}

func (p *SelectionPolicy) maxAliases() int {
	if p.MaxAliases == 0 {
		return defaultMaxAliases
	}
	return p.MaxAliases
}

// Selects reports whether e should be embedded.
func (p SelectionPolicy) Selects(e catalog.Entry) bool {
	floor, ok := p.floors()[e.Category]
	return ok && e.Popularity >= floor
}

// Text returns the embedding text of e: the name with spaces, followed by
// up to MaxAliases ASCII aliases, comma separated. Non-ASCII aliases are
// left out; they add noise to English embedding models.
func (p SelectionPolicy) Text(e catalog.Entry) string {
	limit := p.maxAliases()
	var b strings.Builder
	b.WriteString(normalize.Display(e.Name))
	n := 0
	for _, a := range e.Aliases {
		if n >= limit {
			break
		}
		a = strings.TrimSpace(a)
		if a == "" || !isASCII(a) {
			continue
		}
		b.WriteString(", ")
		b.WriteString(strings.ReplaceAll(a, normalize.Separator, " "))
		n++
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
