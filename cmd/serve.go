// cmd/serve.go
package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/gangsched/gangsched/internal/pool"
	"github.com/gangsched/gangsched/internal/reconfig"
	"github.com/gangsched/gangsched/internal/sched"
	"github.com/gangsched/gangsched/internal/trace"
)

var (
	serveRequestFile string
	serveTicks       int
	serveTickNS      int64
	serveTraceLevel  string
)

// serveCmd is the demo multi-pCPU run loop named in SPEC_FULL.md's AMBIENT STACK: it
// commits one configuration, then drives the dispatcher across every pCPU for a fixed
// number of ticks, paced by a rate.Limiter standing in for the host's own tick source
// (golang.org/x/time/rate — DOMAIN STACK, "paces simulated scheduling ticks").
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Commit a configuration and drive the dispatcher for a fixed number of ticks",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := pool.New(poolSize, cfg)
		coord := reconfig.New(p)

		req, err := loadPutRequest(serveRequestFile, poolSize, cfg.Grain())
		if err != nil {
			logrus.Fatalf("serve: %v", err)
		}
		if err := coord.Put(context.Background(), true, req); err != nil {
			logrus.Fatalf("serve: %v", err)
		}

		if !trace.IsValidLevel(serveTraceLevel) {
			logrus.Fatalf("serve: invalid trace level %q", serveTraceLevel)
		}
		tr := trace.New(trace.Config{Level: trace.Level(serveTraceLevel)})

		limiter := rate.NewLimiter(rate.Every(0), 1)
		if serveTickNS > 0 {
			limiter = rate.NewLimiter(rate.Limit(float64(1_000_000_000)/float64(serveTickNS)), 1)
		}

		now := int64(0)
		for tick := 0; tick < serveTicks; tick++ {
			if err := limiter.Wait(context.Background()); err != nil {
				logrus.Warnf("serve: rate limiter wait: %v", err)
			}
			for pcpu := 0; pcpu < poolSize; pcpu++ {
				local := p.Local(pcpu)
				if local == nil {
					tr.RecordDispatch(trace.DispatchRecord{Tick: int64(tick), PCPU: pcpu, Cohort: -1, Idle: true})
					continue
				}
				result := sched.Dispatch(local, pcpu, now, false)
				cohort := p.Topology().CohortOf(pcpu)
				domainID := int32(0)
				if result.VCPU != sched.Idle {
					domainID = int32(result.VCPU.Domain)
				}
				tr.RecordDispatch(trace.DispatchRecord{
					Tick:     int64(tick),
					PCPU:     pcpu,
					Cohort:   cohort,
					DomainID: domainID,
					SliceNS:  result.SliceNS,
					Idle:     result.VCPU == sched.Idle,
				})
			}
			now += serveTickNS
		}

		summary := trace.Summarize(tr)
		fmt.Printf("=== Dispatch Summary ===\n")
		fmt.Printf("Total dispatch decisions : %d\n", summary.TotalDispatches)
		fmt.Printf("Busy                      : %d\n", summary.BusyCount)
		fmt.Printf("Idle                      : %d\n", summary.IdleCount)
		for pcpu, n := range summary.PerPCPUBusy {
			fmt.Printf("  pCPU %-3d busy ticks     : %d\n", pcpu, n)
		}
		logrus.Info("serve: run complete")
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveRequestFile, "request", "", "YAML file describing the domain entries to put before serving")
	serveCmd.Flags().IntVar(&serveTicks, "ticks", 100, "Number of dispatch ticks to run")
	serveCmd.Flags().Int64Var(&serveTickNS, "tick-ns", 1_000_000, "Simulated tick length in nanoseconds")
	serveCmd.Flags().StringVar(&serveTraceLevel, "trace", "none", "Decision trace level (none, decisions)")
	_ = serveCmd.MarkFlagRequired("request")
}
