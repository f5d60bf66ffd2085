/*Command bio-gem runs GEM mapping tools and works with their output.

  bio-gem merge [-exclusive] [-strict] [-output path] target.map source.map...
    merges the mappings of the sources into the target. The inputs must
    list the same reads in the same order; reads missing from a source are
    kept from the target.

  bio-gem export [-format fasta|fastq] [-trim-qualities] [-untrim] [-output path] input
    writes the reads of a map or sequence file as FASTA or FASTQ. With
    -untrim, the labels of reads trimmed before mapping are removed.

  bio-gem map -index genome [-output path] input
    maps the reads of a FASTA, FASTQ or map file with gem-mapper.

  bio-gem executables [-bundled dir]
    shows where each GEM executable is found.

Executables are looked up in $GEM_PATH, then in the -bundled directory,
then in $PATH.
*/
package main
