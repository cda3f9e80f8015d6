// Package testrelease provides a miniature miRBase release for tests.
package testrelease

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// Version is the release name the fixture is written under.
const Version = "22.1"

// Organisms is the organism list.
const Organisms = "#organism\tdivision\tname\ttree\tNCBI-taxid\n" +
	"cel\tCEL\tCaenorhabditis elegans\tMetazoa;Bilateria;Ecdysozoa;Nematoda;\t6239\n" +
	"cbr\tCBR\tCaenorhabditis briggsae\tMetazoa;Bilateria;Ecdysozoa;Nematoda;\t6238\n" +
	"hsa\tHSA\tHomo sapiens\tMetazoa;Bilateria;Deuterostoma;Chordata;Vertebrata;Mammalia;Primates;Hominidae;\t9606\n" +
	"ebv\tEBV\tEpstein Barr Virus\tViruses;\n"

// Records holds six precursors. hsa-let-7a-5p (MIMAT0000062) is excised
// from both hsa-let-7a-1 and hsa-let-7a-2.
const Records = `ID   cel-let-7         standard; RNA; CEL; 99 BP.
XX
AC   MI0000001;
XX
DE   cel-let-7 stem-loop
XX
RN   [1]
RX   PUBMED; 11679671.
RA   Someone A;
XX
RN   [2]
RX   PUBMED; 12672692.
RA   Someone A;
XX
FH   Key             Location/Qualifiers
FH
FT   miRNA           17..38
FT                   /accession="MIMAT0000001"
FT                   /product="cel-let-7-5p"
FT                   /evidence=experimental
FT                   /experiment="cloned [1-3], Northern [1], PCR [4], 454 [5], Illumina [6], CLIP-seq [7]"
FT   miRNA           60..81
FT                   /accession="MIMAT0015091"
FT                   /product="cel-let-7-3p"
FT                   /evidence=experimental
FT                   /experiment="Illumina [6]"
XX
SQ   Sequence 99 BP; 0 A; 0 C; 0 G; 0 T; 0 U; 0 other;
     uacacugugg auccggugag guaguagguu guauaguuug gaauauuacc accggugaac       60
     uaugcaauuu ucuaccuuac cggagacaga acucuucga                              99
//
ID   cel-lin-4         standard; RNA; CEL; 75 BP.
XX
AC   MI0000002;
XX
DE   cel-lin-4 stem-loop
XX
RN   [1]
RX   PUBMED; 8252621.
RA   Someone A;
XX
FH   Key             Location/Qualifiers
FH
FT   miRNA           16..36
FT                   /accession="MIMAT0000002"
FT                   /product="cel-lin-4-5p"
FT                   /evidence=experimental
FT                   /experiment="cloned [2]"
XX
SQ   Sequence 75 BP; 0 A; 0 C; 0 G; 0 T; 0 U; 0 other;
     augcuuccgg ccuguucccu gagaccucaa guguguguac uaauacauca cugucauuag       60
     aggauccggg uagca                                                        75
//
ID   cel-mir-1         standard; RNA; CEL; 96 BP.
XX
AC   MI0000003;
XX
DE   cel-mir-1 stem-loop
XX
RN   [1]
RX   PUBMED; 11679671.
RA   Someone A;
XX
FH   Key             Location/Qualifiers
FH
FT   miRNA           61..81
FT                   /accession="MIMAT0000003"
FT                   /product="cel-miR-1-3p"
FT                   /evidence=not_experimental
XX
SQ   Sequence 96 BP; 0 A; 0 C; 0 G; 0 T; 0 U; 0 other;
     gcuaaagaca auuacauaac auacacguca gcacgaaacu uguuggccca gugugaaucg       60
     cuuaaggguu aaguaagugu gaugcauacg ccuuua                                 96
//
ID   cbr-let-7         standard; RNA; CBR; 98 BP.
XX
AC   MI0000077;
XX
DE   cbr-let-7 stem-loop
XX
RN   [1]
RX   PUBMED; 15345052.
RA   Someone A;
XX
FH   Key             Location/Qualifiers
FH
FT   miRNA           17..38
FT                   /accession="MIMAT0000070"
FT                   /product="cbr-let-7-5p"
FT                   /evidence=not_experimental
XX
SQ   Sequence 98 BP; 0 A; 0 C; 0 G; 0 T; 0 U; 0 other;
     cuugcugugu ccaccccauc ggacuggcau uuuuauuaca cucagaaaca gaacucgggu       60
     aauuuugaca ggucacgcag aggcgcgccc uccugaag                               98
//
ID   hsa-let-7a-1      standard; RNA; HSA; 80 BP.
XX
AC   MI0000060;
XX
DE   hsa-let-7a-1 stem-loop
XX
RN   [1]
RX   PUBMED; 12554859.
RA   Someone A;
XX
RN   [2]
RX   PUBMED; 15937218.
RA   Someone A;
XX
FH   Key             Location/Qualifiers
FH
FT   miRNA           6..27
FT                   /accession="MIMAT0000062"
FT                   /product="hsa-let-7a-5p"
FT                   /evidence=experimental
FT                   /experiment="cloned [1-2]"
FT   miRNA           57..77
FT                   /accession="MIMAT0004481"
FT                   /product="hsa-let-7a-3p"
FT                   /evidence=experimental
FT                   /experiment="cloned [2]"
XX
SQ   Sequence 80 BP; 0 A; 0 C; 0 G; 0 T; 0 U; 0 other;
     ugcguggaca cucgcuauga aucucugauu uacccacucu gccaaacucc agcgcgguca       60
     guuccaucac ccuaaguaac                                                   80
//
ID   hsa-let-7a-2      standard; RNA; HSA; 72 BP.
XX
AC   MI0000061;
XX
DE   hsa-let-7a-2 stem-loop
XX
RN   [1]
RX   PUBMED; 12554859.
RA   Someone A;
XX
FH   Key             Location/Qualifiers
FH
FT   miRNA           4..25
FT                   /accession="MIMAT0000062"
FT                   /product="hsa-let-7a-5p"
FT                   /evidence=experimental
FT                   /experiment="cloned [1-2]"
XX
SQ   Sequence 72 BP; 0 A; 0 C; 0 G; 0 T; 0 U; 0 other;
     cgaauaaugc guucgcucua uugacuacga cgcgcucauu cccuugucgg agaguuaugg       60
     aacaaggacg cu                                                           72
//
`

// HighConfidence flags cel-let-7 and hsa-let-7a-1.
const HighConfidence = ">cel-let-7 MI0000001 Caenorhabditis elegans let-7 stem-loop\n" +
	"UACACUGUGGAUCCGGUGAGGUAGUAGGUUGUAUAGUUUGGAAUAUUACCACCGGUGAACUAUGCAAUUUUCUACCUUACCGGAGACAGAACUCUUCGA\n" +
	">hsa-let-7a-1 MI0000060 Homo sapiens let-7a-1 stem-loop\n" +
	"UGGGAUGAGGUAGUAGGUUGUAUAGUUUUAGGGUCACACCCACCACUGGGAGAUAACUAUACAAUCUACUGUCUUUCCUA\n"

// Structures holds one stanza per precursor.
const Structures = 	">cel-let-7 (-42.90)   [cel-let-7-5p:17-38] [cel-let-7-3p:60-81]\n" +
	"\n" +
	"------uacacuguggaucc         ggu       ga   u     -   uuaccaccgg \n" +
	"                    ggugagguagu   uguau  gua uugga aua          u\n" +
	"                    |||||||||||   |||||  ||| ||||| |||           \n" +
	"                    ccauucuaucg   acaua  uau aaccu uau          g\n" +
	"agcuucucaagacagag            gau       --   u     -   gaaaacguaa \n" +
	"\n" +
	">cel-lin-4 (-20.00)\n" +
	"\n" +
	"ac \n" +
	"  g\n" +
	"  |  u\n" +
	"  c\n" +
	"ua \n" +
	"\n" +
	">cel-mir-1 (-20.00)\n" +
	"\n" +
	"ac \n" +
	"  g\n" +
	"  |  u\n" +
	"  c\n" +
	"ua \n" +
	"\n" +
	">cbr-let-7 (-20.00)\n" +
	"\n" +
	"ac \n" +
	"  g\n" +
	"  |  u\n" +
	"  c\n" +
	"ua \n" +
	"\n" +
	">hsa-let-7a-1 (-20.00)\n" +
	"\n" +
	"ac \n" +
	"  g\n" +
	"  |  u\n" +
	"  c\n" +
	"ua \n" +
	"\n" +
	">hsa-let-7a-2 (-20.00)\n" +
	"\n" +
	"ac \n" +
	"  g\n" +
	"  |  u\n" +
	"  c\n" +
	"ua \n" +
	"\n"

// LetSevenStructure is the dot-bracket structure of cel-let-7.
const LetSevenStructure = "..............(((((((((((...(((((..(((.((((((((...................))).)))).)))..)))...)))))))))))...................."

// SmallStructure is the structure of every other precursor.
const SmallStructure = "..(.).."

// GenomeCel places the three worm precursors: cel-let-7 at X:100-200,
// cel-lin-4 at X:150-250 and cel-mir-1 at I:500-600.
const GenomeCel = "##gff-version 3\n" +
	"# Chromosomal coordinates of Caenorhabditis elegans microRNAs\n" +
	"X\t.\tmiRNA_primary_transcript\t100\t200\t.\t-\t.\tID=MI0000001;Alias=MI0000001;Name=cel-let-7\n" +
	"X\t.\tmiRNA\t110\t131\t.\t-\t.\tID=MIMAT0000001;Alias=MIMAT0000001;Name=cel-let-7-5p;Derives_from=MI0000001\n" +
	"X\t.\tmiRNA\t160\t181\t.\t-\t.\tID=MIMAT0015091;Alias=MIMAT0015091;Name=cel-let-7-3p;Derives_from=MI0000001\n" +
	"X\t.\tmiRNA_primary_transcript\t150\t250\t.\t+\t.\tID=MI0000002;Alias=MI0000002;Name=cel-lin-4\n" +
	"X\t.\tmiRNA\t165\t185\t.\t+\t.\tID=MIMAT0000002;Alias=MIMAT0000002;Name=cel-lin-4-5p;Derives_from=MI0000002\n" +
	"I\t.\tmiRNA_primary_transcript\t500\t600\t.\t+\t.\tID=MI0000003;Alias=MI0000003;Name=cel-mir-1\n" +
	"I\t.\tmiRNA\t520\t540\t.\t+\t.\tID=MIMAT0000003;Alias=MIMAT0000003;Name=cel-miR-1-3p;Derives_from=MI0000003\n"

// GenomeHsa places both let-7a precursors and one unknown feature.
const GenomeHsa = "##gff-version 3\n" +
	"chr9\t.\tmiRNA_primary_transcript\t1000\t1080\t.\t+\t.\tID=MI0000060;Alias=MI0000060;Name=hsa-let-7a-1\n" +
	"chr9\t.\tmiRNA\t1005\t1026\t.\t+\t.\tID=MIMAT0000062;Alias=MIMAT0000062;Name=hsa-let-7a-5p;Derives_from=MI0000060\n" +
	"chr9\t.\tmiRNA\t1056\t1076\t.\t+\t.\tID=MIMAT0004481;Alias=MIMAT0004481;Name=hsa-let-7a-3p;Derives_from=MI0000060\n" +
	"chr11\t.\tmiRNA_primary_transcript\t2000\t2072\t.\t-\t.\tID=MI0000061;Alias=MI0000061;Name=hsa-let-7a-2\n" +
	"chr11\t.\tmiRNA\t2048\t2069\t.\t-\t.\tID=MIMAT0000062_1;Alias=MIMAT0000062;Name=hsa-let-7a-5p;Derives_from=MI0000061\n" +
	"chr11\t.\tmiRNA_primary_transcript\t9000\t9100\t.\t-\t.\tID=MI9999999;Alias=MI9999999;Name=hsa-mir-gone\n"

// Files maps release-relative paths to their uncompressed content. The
// cbr and ebv genome tables are absent.
func Files() map[string]string {
	return map[string]string{
		"organisms.txt.gz":        Organisms,
		"miRNA.dat.gz":            Records,
		"hairpin_high_conf.fa.gz": HighConfidence,
		"miRNA.str.gz":            Structures,
		"genomes/cel.gff3":        GenomeCel,
		"genomes/hsa.gff3":        GenomeHsa,
	}
}

// Write lays the release out under root/Version. Files named *.gz are gzip
// compressed.
func Write(t testing.TB, root string) {
	t.Helper()
	for rel, content := range Files() {
		path := filepath.Join(root, Version, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

		data := []byte(content)
		if filepath.Ext(rel) == ".gz" {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, err := w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			data = buf.Bytes()
		}
		require.NoError(t, os.WriteFile(path, data, 0644))
	}
}
