package parser

import (
	"fmt"
	"io"
	"strings"
)

const formatStructure = "miRNA.str"

// stanzaLines is the number of non-blank lines per structure stanza: the
// header, two 5' alignment rows, the pairing row and two 3' alignment rows.
const stanzaLines = 6

// NameResolver maps a precursor display name to its accession.
type NameResolver func(name string) (string, bool)

// StructureParser converts the pseudo-graphical hairpin dump into
// dot-bracket notation.
type StructureParser struct {
	resolve NameResolver
}

// NewStructureParser creates a parser that resolves stanza names through
// resolve.
func NewStructureParser(resolve NameResolver) *StructureParser {
	return &StructureParser{resolve: resolve}
}

// Parse reads every stanza and calls fn with the precursor accession and its
// dot-bracket structure.
func (p *StructureParser) Parse(r io.Reader, fn func(id, structure string)) error {
	scanner := newScanner(r)

	var stanza []string
	start := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if len(stanza) == 0 {
			if !strings.HasPrefix(line, ">") {
				return malformed(formatStructure, lineNum, "expected stanza header")
			}
			start = lineNum
		}
		stanza = append(stanza, line)
		if len(stanza) < stanzaLines {
			continue
		}

		name := strings.Trim(strings.Fields(stanza[0])[0], ">")
		id, ok := p.resolve(name)
		if !ok {
			return lineErr(formatStructure, start, fmt.Errorf("%w: %q", ErrUnknownPrecursor, name))
		}
		fn(id, DotBracket(stanza[1], stanza[2], stanza[3], stanza[4], stanza[5]))
		stanza = stanza[:0]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", formatStructure, err)
	}
	if len(stanza) > 0 {
		return lineErr(formatStructure, start, fmt.Errorf("%w: stanza has %d of %d lines", ErrTruncated, len(stanza), stanzaLines))
	}
	return nil
}

// DotBracket rebuilds the dot-bracket notation of one hairpin from its five
// alignment rows. The 5' track interleaves rows one and two, the 3' track
// interleaves rows four and five, and the pairing row marks paired bases
// with '|'.
func DotBracket(top1, top2, pairs, bottom1, bottom2 string) string {
	var b strings.Builder
	five := interleave(top1, top2)
	for i := 0; i < len(five) && i < len(pairs); i++ {
		if !isIUPAC(five[i]) {
			continue
		}
		if pairs[i] == '|' {
			b.WriteByte('(')
		} else {
			b.WriteByte('.')
		}
	}

	// a lone unpaired loop base may sit in the pairing row; only
	// single-letter tokens count, and only when there is exactly one
	loop := 0
	for _, tok := range strings.Fields(pairs) {
		if len(tok) == 1 && isIUPAC(tok[0]) {
			loop++
		}
	}
	if loop == 1 {
		b.WriteByte('.')
	}

	three := interleave(bottom1, bottom2)
	var tail []byte
	for i := 0; i < len(three) && i < len(pairs); i++ {
		if !isIUPAC(three[i]) {
			continue
		}
		if pairs[i] == '|' {
			tail = append(tail, ')')
		} else {
			tail = append(tail, '.')
		}
	}
	for i := len(tail) - 1; i >= 0; i-- {
		b.WriteByte(tail[i])
	}
	return b.String()
}

// interleave zips a and b character by character, stopping at the shorter,
// and drops spaces.
func interleave(a, b string) string {
	n := min(len(a), len(b))
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if a[i] != ' ' {
			out = append(out, a[i])
		}
		if b[i] != ' ' {
			out = append(out, b[i])
		}
	}
	return string(out)
}

// iupac holds the nucleotide alphabet, lower case.
var iupac = [256]bool{
	'a': true, 'c': true, 'g': true, 't': true, 'u': true,
	'r': true, 'y': true, 's': true, 'w': true, 'k': true,
	'm': true, 'b': true, 'd': true, 'h': true, 'v': true, 'n': true,
}

func isIUPAC(c byte) bool {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return iupac[c]
}

