package main

import (
	"github.com/spf13/cobra"

	"github.com/inodb/mirus/internal/mirbase"
	"github.com/inodb/mirus/internal/mirus"
	"github.com/inodb/mirus/internal/query"
)

func newOrganismsCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "organisms",
		Short: "List organisms",
		Example: `  mirus organisms           # full organism rows
  mirus organisms --short   # abbreviation -> name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			if short {
				abbrevs, _, ok := db.OrganismAbbreviations()
				return writeLookup(cmd, abbrevs, ok)
			}
			orgs, _, ok := db.ListOrganisms()
			return writeLookup(cmd, orgs, ok)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Map abbreviations to organism names")
	return cmd
}

func newTaxonomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy <organism>...",
		Short: "Show the taxonomy path of organisms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			tax, _, ok := db.TaxonomyOf(args...)
			return writeLookup(cmd, tax, ok)
		},
	}
}

func newOrganismsAtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "organisms-at <rank>",
		Short: "List organisms under a taxonomy rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			names, _, ok := db.OrganismsAt(args[0])
			return writeLookup(cmd, names, ok)
		},
	}
}

func newTaxIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxid <organism>...",
		Short: "Show NCBI taxonomy ids of organisms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			taxids, _, ok := db.TaxIDOf(args...)
			return writeLookup(cmd, taxids, ok)
		},
	}
}

// criteriaFlags registers the search flags shared by precursor and mirna.
// related names the flag holding accessions of the other entity kind.
func criteriaFlags(cmd *cobra.Command, c *mirus.Criteria, related, relatedUsage string) {
	f := cmd.Flags()
	f.StringSliceVar(&c.IDs, "id", nil, "Accessions")
	f.StringSliceVar(&c.Names, "name", nil, "Names")
	f.StringSliceVar(&c.Related, related, nil, relatedUsage)
	f.StringVar(&c.Taxon, "taxon", "", "Taxonomy rank, e.g. Primates")
	f.StringVar(&c.Organism, "organism", "", "Organism full name")
	f.StringVar(&c.Chromosome, "chromosome", "", "Chromosome")
	f.StringVar(&c.Strand, "strand", "", "Strand: + or -")
	f.StringVar(&c.Start, "start", "", "Window start")
	f.StringVar(&c.End, "end", "", "Window end")
}

func newPrecursorCmd() *cobra.Command {
	var (
		c        mirus.Criteria
		highConf bool
	)
	cmd := &cobra.Command{
		Use:   "precursor",
		Short: "Search precursor hairpins",
		Example: `  mirus precursor --id MI0000001
  mirus precursor --organism "Homo sapiens" --chromosome chr9 --strand + --start 1000 --end 2000
  mirus precursor --taxon Nematoda --high-conf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			res, err := db.FindPrecursor(c)
			if err != nil {
				return err
			}
			if highConf && res != nil {
				return writeHighConfidence(cmd, db, res.All())
			}
			return writeResult(cmd, res)
		},
	}
	criteriaFlags(cmd, &c, "mirna", "Mature accessions whose precursors to return")
	cmd.Flags().BoolVar(&highConf, "high-conf", false, "Keep only high-confidence entries")
	return cmd
}

func newMiRNACmd() *cobra.Command {
	var (
		c        mirus.Criteria
		highConf bool
	)
	cmd := &cobra.Command{
		Use:   "mirna",
		Short: "Search mature miRNAs",
		Example: `  mirus mirna --name hsa-let-7a-5p
  mirus mirna --precursor MI0000060,MI0000061`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			res, err := db.FindMiRNA(c)
			if err != nil {
				return err
			}
			if highConf && res != nil {
				return writeHighConfidence(cmd, db, res.All())
			}
			return writeResult(cmd, res)
		},
	}
	criteriaFlags(cmd, &c, "precursor", "Precursor accessions whose mature miRNAs to return")
	cmd.Flags().BoolVar(&highConf, "high-conf", false, "Keep only high-confidence entries")
	return cmd
}

func writeHighConfidence[T mirbase.Entity](cmd *cobra.Command, db *mirus.DB, items []T) error {
	entities := make([]mirbase.Entity, len(items))
	for i, e := range items {
		entities[i] = e
	}
	kept, _, ok := db.HighConfidence(entities...)
	return writeLookup(cmd, kept, ok)
}

func newReferencesCmd() *cobra.Command {
	var q query.ReferenceQuery
	cmd := &cobra.Command{
		Use:   "references",
		Short: "Show PubMed references of precursors and mature miRNAs",
		Example: `  mirus references --precursor-id MI0000001 --link
  mirus references --mirna-name hsa-let-7a-5p`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			refs, _, ok := db.References(q)
			return writeLookup(cmd, refs, ok)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&q.MiRNAIDs, "mirna-id", nil, "Mature accessions")
	f.StringSliceVar(&q.MiRNANames, "mirna-name", nil, "Mature names")
	f.StringSliceVar(&q.PrecursorIDs, "precursor-id", nil, "Precursor accessions")
	f.StringSliceVar(&q.PrecursorNames, "precursor-name", nil, "Precursor names")
	f.BoolVar(&q.Link, "link", false, "Print PubMed URLs instead of ids")
	return cmd
}

func newStructureCmd() *cobra.Command {
	var ids, names []string
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Show dot-bracket structures of precursors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			st, _, ok := db.Structure(ids, names)
			return writeLookup(cmd, st, ok)
		},
	}
	cmd.Flags().StringSliceVar(&ids, "id", nil, "Precursor accessions")
	cmd.Flags().StringSliceVar(&names, "name", nil, "Precursor names")
	return cmd
}

func newClusterCmd() *cobra.Command {
	var (
		q         query.ClusterQuery
		direction string
		matures   bool
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Find precursors clustered around an anchor",
		Example: `  mirus cluster --precursor-id MI0000060 --range 10000
  mirus cluster --mirna-id MIMAT0000062 --direction upstream --range 5000 --mirnas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := query.ParseDirection(direction)
			if err != nil {
				return err
			}
			q.Direction = d

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			if matures {
				out, err := db.ClusterMiRNAs(q)
				if err != nil {
					return err
				}
				return writeLookup(cmd, out, out != nil)
			}
			out, err := db.Cluster(q)
			if err != nil {
				return err
			}
			return writeLookup(cmd, out, out != nil)
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.MiRNAID, "mirna-id", "", "Mature accession anchor")
	f.StringVar(&q.PrecursorID, "precursor-id", "", "Precursor accession anchor")
	f.StringVar(&direction, "direction", string(query.UpDownstream), "up-downstream, upstream or downstream")
	f.Int64Var(&q.Range, "range", 10000, "Window size in bases")
	f.BoolVar(&matures, "mirnas", false, "Return mature miRNAs instead of precursors")
	cmd.MarkFlagsMutuallyExclusive("mirna-id", "precursor-id")
	cmd.MarkFlagsOneRequired("mirna-id", "precursor-id")
	return cmd
}

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [rank...]",
		Short: "Show the taxonomy tree or the subtree below a rank path",
		Example: `  mirus tree
  mirus tree Metazoa Bilateria Ecdysozoa`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			n := db.TaxonomyTree(args...)
			if n == nil {
				return noRecords(cmd)
			}
			return writeOutput(cmd, n.Value())
		},
	}
}
