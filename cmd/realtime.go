package cmd

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/agent001/UNCALLED/config"
	"github.com/agent001/UNCALLED/internal/realtime"
	"github.com/agent001/UNCALLED/internal/uncalled"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// realtimeCmd represents the realtime command
var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Run the read-until daemon over a stream of signal chunks",
	Long: `Run one mapper per sequencer channel over interleaved signal chunks,
deciding for each read whether to keep sequencing it or eject it from
the pore. Decisions are written as PAF lines with a ur:Z tag.

Chunks are replayed from a raw signal dump, dealt across channels the
way a sequencer delivers them.`,
	Run: runRealtime,
}

func runRealtime(cmd *cobra.Command, args []string) {
	viper.BindPFlag("index", cmd.Flags().Lookup("index"))
	viper.BindPFlag("model", cmd.Flags().Lookup("model"))
	viper.BindPFlag("signals", cmd.Flags().Lookup("signals"))
	viper.BindPFlag("paf-out", cmd.Flags().Lookup("out"))
	viper.BindPFlag("channels", cmd.Flags().Lookup("channels"))
	viper.BindPFlag("mode", cmd.Flags().Lookup("mode"))
	viper.BindPFlag("settings", cmd.Flags().Lookup("settings"))

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	readSettings()
	conf := config.New()
	if mode := viper.GetString("mode"); mode != "" {
		conf.Realtime.Mode = mode
	}
	if ch := viper.GetInt("channels"); ch > 0 {
		conf.Realtime.Channels = ch
	}

	model, fmi := loadModelAndIndex(conf)

	reads, err := uncalled.ReadSignalFile(viper.GetString("signals"))
	if err != nil {
		level.Error(logger).Log("msg", "failed to read signals", "err", err)
		os.Exit(1)
	}
	src := realtime.NewFileSource(reads, conf.Realtime.Channels, conf.Realtime.ChunkLen)

	reg := prometheus.NewRegistry()
	if addr := conf.Realtime.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
		level.Info(logger).Log("msg", "serving metrics", "addr", addr)
	}

	out := os.Stdout
	if path := viper.GetString("paf-out"); path != "" {
		out, err = os.Create(path)
		if err != nil {
			level.Error(logger).Log("msg", "failed to create output", "err", err)
			os.Exit(1)
		}
		defer out.Close()
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := realtime.New(conf, model, fmi, logger, reg)
	if err := srv.Run(ctx, src, w); err != nil && err != context.Canceled {
		level.Error(logger).Log("msg", "realtime run failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(realtimeCmd)

	realtimeCmd.Flags().StringP("index", "x", "", "path to the reference index (see 'uncalled index')")
	realtimeCmd.Flags().StringP("model", "m", "", "path to the pore k-mer model file")
	realtimeCmd.Flags().StringP("signals", "i", "", "path to a raw signal dump to replay")
	realtimeCmd.Flags().StringP("out", "o", "", "output PAF file (default stdout)")
	realtimeCmd.Flags().IntP("channels", "c", 0, "number of channels (default from settings)")
	realtimeCmd.Flags().String("mode", "", `"deplete" or "enrich"`)
	realtimeCmd.Flags().StringP("settings", "s", "", "optional settings file")

	realtimeCmd.MarkFlagRequired("index")
	realtimeCmd.MarkFlagRequired("model")
	realtimeCmd.MarkFlagRequired("signals")
}
