package cmd

import (
	"bufio"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bhhoang/enersched/internal/common/logging"
	"github.com/bhhoang/enersched/internal/edc"
	"github.com/bhhoang/enersched/internal/scheduler/metrics"
)

// RootCmd replays a recorded event-batch trace through a scheduler session.
// Each line of the events file is one JSON event batch as delivered by the
// simulator; the corresponding decision batches are printed in order.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enersched",
		Short: "Replay a simulator event trace through the energy-aware scheduler.",
		RunE:  runReplay,
	}
	cmd.Flags().String("config", "", "Path to a JSON scheduler configuration (the simulator's init blob).")
	cmd.Flags().String("events", "", "Path to an event trace, one JSON event batch per line. Defaults to stdin.")
	cmd.Flags().Int("metricsPort", 0, "Serve prometheus metrics on this port. Disabled if 0.")
	cmd.Flags().Bool("showDecisions", true, "Print decision batches to stdout.")
	cmd.Flags().BoolP("verbose", "v", false, "Log scheduling detail.")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	eventsPath, err := cmd.Flags().GetString("events")
	if err != nil {
		return err
	}
	metricsPort, err := cmd.Flags().GetInt("metricsPort")
	if err != nil {
		return err
	}
	showDecisions, err := cmd.Flags().GetBool("showDecisions")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	logging.ConfigureVerbosity(verbose)

	var configBlob []byte
	if configPath != "" {
		configBlob, err = os.ReadFile(configPath)
		if err != nil {
			return err
		}
	}
	session, err := edc.Init(configBlob, edc.FormatJSON)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Deinit(); err != nil {
			log.Error(err)
		}
	}()

	if metricsPort > 0 {
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewCollector(session))
		http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			log.WithField("port", metricsPort).Info("serving metrics")
			if err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), nil); err != nil {
				log.Error(err)
			}
		}()
	}

	in := os.Stdin
	if eventsPath != "" {
		f, err := os.Open(eventsPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	batches := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		decisions, err := session.TakeDecisions(line)
		if err != nil {
			return err
		}
		batches++
		if showDecisions {
			fmt.Println(string(decisions))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	snapshot := session.Snapshot()
	log.WithFields(log.Fields{
		"batches":    batches,
		"launched":   snapshot.Launched,
		"rejected":   snapshot.Rejected,
		"backfilled": snapshot.Backfilled,
	}).Info("replay finished")
	return nil
}
