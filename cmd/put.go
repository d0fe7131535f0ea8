// cmd/put.go
package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gangsched/gangsched/internal/pool"
	"github.com/gangsched/gangsched/internal/reconfig"
)

var putRequestFile string

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Validate, admit, and commit a domain configuration from a request file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := pool.New(poolSize, cfg)
		coord := reconfig.New(p)

		req, err := loadPutRequest(putRequestFile, poolSize, cfg.Grain())
		if err != nil {
			logrus.Fatalf("put: %v", err)
		}

		if err := coord.Put(context.Background(), true, req); err != nil {
			logrus.Fatalf("put: %v", err)
		}
		logrus.WithField("entries", len(req.Entries)).Info("put: committed")
	},
}

func init() {
	putCmd.Flags().StringVar(&putRequestFile, "request", "", "YAML file describing the domain entries to put")
	_ = putCmd.MarkFlagRequired("request")
}
