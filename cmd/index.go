package cmd

import (
	"log"

	"github.com/agent001/UNCALLED/config"
	"github.com/agent001/UNCALLED/internal/uncalled"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build a reference index for signal mapping",
	Long: `Build the FM-index the mapper aligns signal against. Both strands of
the reference are indexed, along with the initial suffix-array range
of every k-mer, and the result is written as a single compressed
index file. The index stores a fingerprint of the reference; the
map and realtime commands load the index without comparing it to
the FASTA.`,
	Run: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) {
	viper.BindPFlag("reference", cmd.Flags().Lookup("reference"))
	viper.BindPFlag("index-out", cmd.Flags().Lookup("out"))
	viper.BindPFlag("kmer-len", cmd.Flags().Lookup("kmer-len"))
	viper.BindPFlag("settings", cmd.Flags().Lookup("settings"))

	readSettings()
	conf := config.New()

	ref := viper.GetString("reference")
	out := viper.GetString("index-out")
	k := viper.GetInt("kmer-len")

	contigs, err := uncalled.LoadFasta(ref)
	if err != nil {
		log.Fatalf("failed to read reference: %v", err)
	}

	fmi, err := uncalled.BuildFMIndex(contigs, k, &conf.Index)
	if err != nil {
		log.Fatalf("failed to build index: %v", err)
	}

	if err := fmi.Save(out); err != nil {
		log.Fatalf("failed to write index: %v", err)
	}
	log.Printf("indexed %d bases into %s", fmi.Size(), out)
}

func init() {
	RootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("reference", "r", "", "path to the reference FASTA (optionally gzipped)")
	indexCmd.Flags().StringP("out", "o", "", "path to write the index to")
	indexCmd.Flags().IntP("kmer-len", "k", 5, "k-mer length, must match the pore model")
	indexCmd.Flags().StringP("settings", "s", "", "optional settings file")

	indexCmd.MarkFlagRequired("reference")
	indexCmd.MarkFlagRequired("out")
}
