package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the small enumerated kind of a canonical label. The numeric
// values follow the booru tag export format.
type Category uint8

const (
	General   Category = 0
	Artist    Category = 1
	Copyright Category = 3
	Character Category = 4
	Meta      Category = 5
)

var categoryNames = map[Category]string{
	General:   "general",
	Artist:    "artist",
	Copyright: "copyright",
	Character: "character",
	Meta:      "meta",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "category(" + strconv.Itoa(int(c)) + ")"
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCategory accepts either the numeric code ("4") or the name
// ("character"), case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		c := Category(n)
		if n < 0 || n > 255 || !c.Valid() {
			return 0, fmt.Errorf("catalog: unknown category code %d", n)
		}
		return c, nil
	}
	ls := strings.ToLower(s)
	for c, name := range categoryNames {
		if name == ls {
			return c, nil
		}
	}
	return 0, fmt.Errorf("catalog: unknown category %q", s)
}

// SourceFlags records which raw sources contributed to an entry. Bit i is
// set when the i-th source passed to the [Builder] defined the entry.
type SourceFlags uint8

// MaxSources is the number of sources a single build can merge.
const MaxSources = 8

// Has reports whether source i contributed.
func (f SourceFlags) Has(i int) bool {
	return i >= 0 && i < MaxSources && f&(1<<uint(i)) != 0
}

// Count returns the number of contributing sources.
func (f SourceFlags) Count() int {
	n := 0
	for i := range MaxSources {
		if f.Has(i) {
			n++
		}
	}
	return n
}

// Entry is one canonical catalog row.
//
// Entries handed out by a [Catalog] share their Aliases slice with the
// catalog; callers must not modify it.
type Entry struct {
	// Name is the normalized canonical label and the catalog's primary key.
	Name string `json:"name" msgpack:"n"`

	// Category is the label kind.
	Category Category `json:"category" msgpack:"c"`

	// Popularity is the non-negative usage count across sources.
	Popularity int64 `json:"popularity" msgpack:"p"`

	// Aliases are alternate raw spellings, possibly in other languages.
	Aliases []string `json:"aliases,omitempty" msgpack:"a,omitempty"`

	// Sources records which raw datasets defined this entry.
	Sources SourceFlags `json:"sources" msgpack:"s"`
}
