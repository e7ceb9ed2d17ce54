// Command aerokit-bench is a small cobra CLI exercising the dispatcher
// end-to-end, grounded on orbas1-Synnergy/synnergy-network/cmd/synnergy's
// root-command-plus-subcommand layout (one cobra.Command per verb, flags
// read off cmd.Flags() inside Run).
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	aerokit "github.com/aerokit-io/aerokit"
	"github.com/aerokit-io/aerokit/cluster"
	"github.com/aerokit-io/aerokit/config"
	"github.com/aerokit-io/aerokit/scan"
	"github.com/aerokit-io/aerokit/value"
)

func main() {
	var envFile string

	root := &cobra.Command{Use: "aerokit-bench"}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file of AEROKIT_* settings")

	root.AddCommand(putCmd(&envFile))
	root.AddCommand(getCmd(&envFile))
	root.AddCommand(deleteCmd(&envFile))
	root.AddCommand(scanCmd(&envFile))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect(ctx context.Context, envFile string) (*cluster.Cluster, config.Policy, error) {
	policy, err := config.Load(envFile)
	if err != nil {
		return nil, config.Policy{}, err
	}
	clusterCfg, err := policy.ClusterConfig()
	if err != nil {
		return nil, config.Policy{}, err
	}
	c, err := cluster.New(ctx, clusterCfg)
	if err != nil {
		return nil, config.Policy{}, err
	}
	return c, policy, nil
}

func putCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <namespace> <set> <key> <bin>=<value> [<bin>=<value> ...]",
		Short: "write bins to a single record",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			c, policy, err := connect(ctx, *envFile)
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := value.NewKey(args[0], args[1], value.NewString(args[2]))
			if err != nil {
				return err
			}

			bins := make(map[string]value.Value, len(args)-3)
			for _, pair := range args[3:] {
				name, raw, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("bin assignment %q must look like name=value", pair)
				}
				bins[name] = parseValue(raw)
			}

			client := aerokit.New(c)
			client.Policy = policy.CommandPolicy()
			if err := client.Put(ctx, key, bins); err != nil {
				return err
			}
			fmt.Printf("wrote %d bin(s) to %s/%s/%s\n", len(bins), args[0], args[1], args[2])
			return nil
		},
	}
	return cmd
}

func getCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <set> <key>",
		Short: "read every bin of a single record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			c, policy, err := connect(ctx, *envFile)
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := value.NewKey(args[0], args[1], value.NewString(args[2]))
			if err != nil {
				return err
			}

			client := aerokit.New(c)
			client.Policy = policy.CommandPolicy()
			bins, err := client.Get(ctx, key)
			if err != nil {
				return err
			}
			if bins == nil {
				fmt.Println("record not found")
				return nil
			}
			for name, v := range bins {
				fmt.Printf("%s = %v\n", name, v)
			}
			return nil
		},
	}
}

func deleteCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace> <set> <key>",
		Short: "delete a single record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			c, policy, err := connect(ctx, *envFile)
			if err != nil {
				return err
			}
			defer c.Close()

			key, err := value.NewKey(args[0], args[1], value.NewString(args[2]))
			if err != nil {
				return err
			}

			client := aerokit.New(c)
			client.Policy = policy.CommandPolicy()
			existed, err := client.Delete(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("existed=%v\n", existed)
			return nil
		},
	}
}

func scanCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <namespace> [set]",
		Short: "stream every record of a namespace",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			c, policy, err := connect(ctx, *envFile)
			if err != nil {
				return err
			}
			defer c.Close()

			req := policy.ScanDefaults()
			req.Namespace = args[0]
			if len(args) > 1 {
				req.Set = args[1]
			}

			count := 0
			for rec := range scan.Execute(ctx, c, req) {
				if rec.Err != nil {
					fmt.Fprintf(os.Stderr, "scan error: %v\n", rec.Err)
					continue
				}
				count++
			}
			fmt.Printf("scanned %d record(s)\n", count)
			return nil
		},
	}
}

// parseValue guesses int vs string for CLI convenience: a bare integer
// literal becomes a Value.Int, anything else a Value.String.
func parseValue(raw string) value.Value {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value.NewInt(n)
	}
	return value.NewString(raw)
}
