package commands

import (
	"strconv"
	"strings"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/match"
)

// resultView is one matched label as printed by `tagmatch match`.
type resultView struct {
	Query      string            `json:"query" yaml:"query"`
	Candidates []match.Candidate `json:"candidates" yaml:"candidates"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type resultTable []resultView

func (resultTable) Header() []string {
	return []string{"QUERY", "NAME", "METHOD", "SCORE", "RAW", "CATEGORY", "POPULARITY"}
}

func (t resultTable) Rows() [][]string {
	var rows [][]string
	for _, r := range t {
		switch {
		case r.Error != "":
			rows = append(rows, []string{r.Query, "error: " + r.Error, "", "", "", "", ""})
		case len(r.Candidates) == 0:
			rows = append(rows, []string{r.Query, "-", "", "", "", "", ""})
		}
		for i, c := range r.Candidates {
			q := ""
			if i == 0 {
				q = r.Query
			}
			rows = append(rows, candidateRow(q, c))
		}
	}
	return rows
}

// candidateTable is a flat candidate list, the output of --select.
type candidateTable []match.Candidate

func (candidateTable) Header() []string { return resultTable(nil).Header() }

func (t candidateTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, c := range t {
		rows[i] = candidateRow(c.Query, c)
	}
	return rows
}

func candidateRow(query string, c match.Candidate) []string {
	return []string{
		query,
		c.Name,
		c.Method.String(),
		strconv.FormatFloat(c.FusedScore, 'f', 3, 64),
		strconv.FormatFloat(c.RawScore, 'f', 3, 64),
		c.Category.String(),
		strconv.FormatInt(c.Popularity, 10),
	}
}

type entryTable []catalog.Entry

func (entryTable) Header() []string {
	return []string{"NAME", "CATEGORY", "POPULARITY", "ALIASES"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, e := range t {
		aliases := e.Aliases
		if len(aliases) > 3 {
			aliases = append(aliases[:3:3], "…")
		}
		rows[i] = []string{e.Name, e.Category.String(), strconv.FormatInt(e.Popularity, 10), strings.Join(aliases, ", ")}
	}
	return rows
}
