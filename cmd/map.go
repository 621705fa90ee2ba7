package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/agent001/UNCALLED/config"
	"github.com/agent001/UNCALLED/internal/uncalled"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map raw signal reads against an indexed reference",
	Long: `Map whole raw-signal reads against a reference index, one read at a
time, through the same chunked lifecycle the realtime daemon uses.
One PAF line is written per read; reads that exhaust the event or
chunk budget without a confident mapping are reported unmapped.`,
	Run: runMap,
}

func runMap(cmd *cobra.Command, args []string) {
	viper.BindPFlag("index", cmd.Flags().Lookup("index"))
	viper.BindPFlag("model", cmd.Flags().Lookup("model"))
	viper.BindPFlag("signals", cmd.Flags().Lookup("signals"))
	viper.BindPFlag("paf-out", cmd.Flags().Lookup("out"))
	viper.BindPFlag("settings", cmd.Flags().Lookup("settings"))

	readSettings()
	conf := config.New()

	model, fmi := loadModelAndIndex(conf)

	reads, err := uncalled.ReadSignalFile(viper.GetString("signals"))
	if err != nil {
		log.Fatalf("failed to read signals: %v", err)
	}

	out := os.Stdout
	if path := viper.GetString("paf-out"); path != "" {
		out, err = os.Create(path)
		if err != nil {
			log.Fatalf("failed to create output: %v", err)
		}
		defer out.Close()
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	mapper, err := uncalled.NewMapper(conf, model, fmi)
	if err != nil {
		log.Fatalf("%v", err)
	}

	mapped := 0
	for i, read := range reads {
		loc := mapper.MapSignal(read.ID, 0, uint32(i), read.Samples)
		if loc.IsMapped() {
			mapped++
		}
		fmt.Fprintln(w, loc.PAF())
	}
	log.Printf("mapped %d of %d reads", mapped, len(reads))
}

// loadModelAndIndex loads the pore model and reference index named by
// the bound flags, failing fast on any mismatch
func loadModelAndIndex(conf *config.Config) (*uncalled.Model, *uncalled.FMIndex) {
	model, err := uncalled.LoadModel(viper.GetString("model"))
	if err != nil {
		log.Fatalf("failed to read pore model: %v", err)
	}

	fmi, err := uncalled.LoadFMIndex(viper.GetString("index"))
	if err != nil {
		log.Fatalf("failed to read index: %v", err)
	}

	if model.KmerLen() != fmi.KmerLen() {
		log.Fatalf("pore model k=%d does not match index k=%d", model.KmerLen(), fmi.KmerLen())
	}
	return model, fmi
}

func init() {
	RootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringP("index", "x", "", "path to the reference index (see 'uncalled index')")
	mapCmd.Flags().StringP("model", "m", "", "path to the pore k-mer model file")
	mapCmd.Flags().StringP("signals", "i", "", "path to a raw signal dump, one read per line")
	mapCmd.Flags().StringP("out", "o", "", "output PAF file (default stdout)")
	mapCmd.Flags().StringP("settings", "s", "", "optional settings file")

	mapCmd.MarkFlagRequired("index")
	mapCmd.MarkFlagRequired("model")
	mapCmd.MarkFlagRequired("signals")
}
