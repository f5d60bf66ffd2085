// Package gemmap reads and writes the GEM mapping format and converts
// mapped reads to FASTA and FASTQ.
//
// Each line of a .map file describes one read (or one read pair):
//
//   id <TAB> sequence [<TAB> qualities] <TAB> summary <TAB> mappings
//
// Paired mates are stored in a single line, their sequences and qualities
// separated by a single space. The summary lists the number of matches
// found per stratum: strata are separated by ':' and sub-buckets within a
// stratum by '+'. The tokens "-" and "*" mean that no match was found,
// "+" and "!" that there were too many matches to enumerate. Mappings is a
// comma separated list of match descriptors laid out stratum by stratum
// in the order given by the summary, or "-" if there are none.
package gemmap
