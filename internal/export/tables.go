package export

import (
	"strings"

	"github.com/inodb/mirus/internal/mirbase"
)

// listSeparator joins list-valued fields into one text column.
const listSeparator = ","

type column struct {
	name string
	typ  string
}

// table describes one export table and how its rows derive from a store.
type table struct {
	name    string
	columns []column
	rows    func(*mirbase.Store) [][]any
}

// tables in creation order; parents precede the tables that reference them.
var tables = []table{
	{
		name: "organisms",
		columns: []column{
			{"abbreviation", "TEXT"},
			{"division", "TEXT"},
			{"name", "TEXT"},
			{"tree", "TEXT"},
			{"taxid", "TEXT"},
		},
		rows: organismRows,
	},
	{
		name: "precursors",
		columns: []column{
			{"id", "TEXT"},
			{"name", "TEXT"},
			{"organism", "TEXT"},
			{"sequence", "TEXT"},
			{"structure", "TEXT"},
			{"high_confidence", "BOOLEAN"},
			{"taxonomy", "TEXT"},
			{"mirnas", "TEXT"},
			{"refs", "TEXT"},
		},
		rows: precursorRows,
	},
	{
		name: "precursor_placements",
		columns: []column{
			{"precursor_id", "TEXT"},
			{"ordinal", "BIGINT"},
			{"chromosome", "TEXT"},
			{"strand", "TEXT"},
			{"start_pos", "BIGINT"},
			{"end_pos", "BIGINT"},
		},
		rows: precursorPlacementRows,
	},
	{
		name: "matures",
		columns: []column{
			{"id", "TEXT"},
			{"organism", "TEXT"},
			{"names", "TEXT"},
			{"precursors", "TEXT"},
			{"refs", "TEXT"},
		},
		rows: matureRows,
	},
	{
		name: "mature_products",
		columns: []column{
			{"mature_id", "TEXT"},
			{"ordinal", "BIGINT"},
			{"sequence", "TEXT"},
			{"start_pos", "BIGINT"},
			{"end_pos", "BIGINT"},
			{"evidence", "TEXT"},
			{"experiment", "TEXT"},
			{"arm_end", "TEXT"},
		},
		rows: matureProductRows,
	},
	{
		name: "mature_placements",
		columns: []column{
			{"mature_id", "TEXT"},
			{"precursor_id", "TEXT"},
			{"start_pos", "BIGINT"},
			{"end_pos", "BIGINT"},
		},
		rows: maturePlacementRows,
	},
}

// TableNames returns the export table names in creation order.
func TableNames() []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.name
	}
	return out
}

func tableByName(name string) (table, bool) {
	for _, t := range tables {
		if t.name == name {
			return t, true
		}
	}
	return table{}, false
}

func (t table) ddl() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(t.name)
	b.WriteString(" (")
	for i, c := range t.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.name)
		b.WriteByte(' ')
		b.WriteString(c.typ)
	}
	b.WriteString(")")
	return b.String()
}

// insert builds a single-row INSERT using placeholder(i) for the i-th
// parameter, counting from 1.
func (t table) insert(placeholder func(int) string) string {
	names := make([]string, len(t.columns))
	params := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
		params[i] = placeholder(i + 1)
	}
	return "INSERT INTO " + t.name + " (" + strings.Join(names, ", ") +
		") VALUES (" + strings.Join(params, ", ") + ")"
}

func organismRows(s *mirbase.Store) [][]any {
	orgs := s.Organisms()
	out := make([][]any, 0, len(orgs))
	for _, o := range orgs {
		var taxid any
		if o.TaxID != "" {
			taxid = o.TaxID
		}
		out = append(out, []any{o.Abbreviation, o.Division, o.Name, o.Tree, taxid})
	}
	return out
}

func precursorRows(s *mirbase.Store) [][]any {
	precs := s.Precursors()
	out := make([][]any, 0, len(precs))
	for _, p := range precs {
		out = append(out, []any{
			p.ID, p.Name, p.Organism, p.Sequence, p.Structure, p.HighConfidence,
			strings.Join(p.Taxonomy, mirbase.TaxonomySeparator),
			strings.Join(p.MiRNAs, listSeparator),
			strings.Join(p.References, listSeparator),
		})
	}
	return out
}

func precursorPlacementRows(s *mirbase.Store) [][]any {
	var out [][]any
	for _, p := range s.Precursors() {
		for i, iv := range p.Coordinates {
			out = append(out, []any{
				p.ID, int64(i), p.Chromosomes[i], p.Strands[i], iv.Start, iv.End,
			})
		}
	}
	return out
}

func matureRows(s *mirbase.Store) [][]any {
	mats := s.MiRNAs()
	out := make([][]any, 0, len(mats))
	for _, m := range mats {
		out = append(out, []any{
			m.ID, m.Organism,
			strings.Join(m.Names, listSeparator),
			strings.Join(m.Precursors, listSeparator),
			strings.Join(m.References, listSeparator),
		})
	}
	return out
}

func matureProductRows(s *mirbase.Store) [][]any {
	var out [][]any
	for _, m := range s.MiRNAs() {
		for i, seq := range m.Sequences {
			out = append(out, []any{
				m.ID, int64(i), seq,
				m.Positions[i].Start, m.Positions[i].End,
				m.Evidence[i], m.Experiments[i], m.Ends[i],
			})
		}
	}
	return out
}

func maturePlacementRows(s *mirbase.Store) [][]any {
	var out [][]any
	for _, m := range s.MiRNAs() {
		m.EachPlacement(func(prec string, iv mirbase.Interval) bool {
			out = append(out, []any{m.ID, prec, iv.Start, iv.End})
			return true
		})
	}
	return out
}
