package query

import (
	"encoding/json"
	"sort"

	"github.com/inodb/mirus/internal/mirbase"
)

// OrganismKey is the reserved key holding the organisms of a terminal node
// when a tree is encoded.
const OrganismKey = "!organism"

// TaxonNode is one rank of the taxonomy trie.
type TaxonNode struct {
	Rank      string
	Children  map[string]*TaxonNode
	Organisms []string // sorted; set on nodes that end an organism's path
}

func newTaxonNode(rank string) *TaxonNode {
	return &TaxonNode{Rank: rank, Children: make(map[string]*TaxonNode)}
}

// Child returns the child rank, or nil.
func (n *TaxonNode) Child(rank string) *TaxonNode {
	if n == nil {
		return nil
	}
	return n.Children[rank]
}

// Ranks returns the child ranks sorted.
func (n *TaxonNode) Ranks() []string {
	out := make([]string, 0, len(n.Children))
	for r := range n.Children {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Value returns the node as nested maps: child ranks as keys and the
// organism list under OrganismKey.
func (n *TaxonNode) Value() map[string]any {
	m := make(map[string]any, len(n.Children)+1)
	for r, c := range n.Children {
		m[r] = c.Value()
	}
	if len(n.Organisms) > 0 {
		m[OrganismKey] = n.Organisms
	}
	return m
}

// MarshalJSON encodes the node as Value does.
func (n *TaxonNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value())
}

// MarshalYAML encodes the node as Value does.
func (n *TaxonNode) MarshalYAML() (any, error) {
	return n.Value(), nil
}

// Tree returns the taxonomy trie, or the subtree reached by following path.
// It returns nil when path does not exist. The trie is built on first use.
func (e *Engine) Tree(path ...string) *TaxonNode {
	e.treeOnce.Do(func() {
		e.tree = buildTree(e.store.Organisms())
	})
	n := e.tree
	for _, rank := range path {
		n = n.Child(rank)
		if n == nil {
			return nil
		}
	}
	return n
}

func buildTree(orgs []mirbase.Organism) *TaxonNode {
	root := newTaxonNode("")
	for _, o := range orgs {
		n := root
		for _, rank := range o.Path() {
			c, ok := n.Children[rank]
			if !ok {
				c = newTaxonNode(rank)
				n.Children[rank] = c
			}
			n = c
		}
		if !contains(n.Organisms, o.Name) {
			n.Organisms = append(n.Organisms, o.Name)
		}
	}
	sortOrganisms(root)
	return root
}

func sortOrganisms(n *TaxonNode) {
	sort.Strings(n.Organisms)
	for _, c := range n.Children {
		sortOrganisms(c)
	}
}
