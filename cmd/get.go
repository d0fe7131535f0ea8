// cmd/get.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gangsched/gangsched/internal/pool"
	"github.com/gangsched/gangsched/internal/reconfig"
)

var getRequestFile string

// getCmd demonstrates the round-trip property of SPEC_FULL.md §8: it puts the entries
// from --request (if given) and then runs the side-effect-free get procedure, printing
// the result as YAML — the "human-usable surface over the Get procedure" SPEC_FULL.md §6
// describes, without a transport layer.
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the currently committed domain configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := pool.New(poolSize, cfg)
		coord := reconfig.New(p)

		var poolID uint32
		if getRequestFile != "" {
			req, err := loadPutRequest(getRequestFile, poolSize, cfg.Grain())
			if err != nil {
				logrus.Fatalf("get: %v", err)
			}
			if err := coord.Put(context.Background(), true, req); err != nil {
				logrus.Fatalf("get: seeding put failed: %v", err)
			}
			poolID = req.PoolID
		}

		entries, err := coord.Get(true)
		if err != nil {
			logrus.Fatalf("get: %v", err)
		}

		out, err := yaml.Marshal(entriesToFile(poolID, entries))
		if err != nil {
			logrus.Fatalf("get: marshalling result: %v", err)
		}
		fmt.Fprint(os.Stdout, string(out))
	},
}

func init() {
	getCmd.Flags().StringVar(&getRequestFile, "request", "", "Optional YAML file to put before reading it back")
}
