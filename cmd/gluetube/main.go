// Command gluetube is the daemon's RPC client and table formatter: each
// action either crafts one fire-and-forget call to gluetubed or reads
// directly from disk (summary through the read-only pipelines database
// handle, store --ls through the key-value store), per spec.md §6.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ctomkow/gluetube/internal/config"
	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/rpc"
	"github.com/ctomkow/gluetube/internal/store"
)

var configPath string

func main() {
	root := &cobra.Command{Use: "gluetube", Short: "gluetube pipeline scheduler CLI"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "explicit config file path")
	root.AddCommand(summaryCmd(), pipelineCmd(), scheduleCmd(), storeCmd(), devCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		fmt.Fprintln(os.Stderr, "Is the daemon running?")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	locations := config.DefaultLocations()
	if configPath != "" {
		locations = append(locations, configPath)
	}
	return config.Load(locations)
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "list pipelines, their schedules, and their latest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			readDB, err := db.OpenReadOnly(cfg.SQLiteDir, cfg.SQLiteAppName)
			if err != nil {
				return err
			}
			defer readDB.Close()

			rows, err := readDB.SummaryPipelines(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PIPELINE\tSCHEDULE\tCRON\tAT\tPAUSED\tLAST STATUS\tLAST START")
			for _, r := range rows {
				cron, at, status, start := "", "", "", ""
				paused := ""
				sched := "-"
				if r.ScheduleID != nil {
					sched = fmt.Sprint(*r.ScheduleID)
				}
				if r.Cron != nil {
					cron = *r.Cron
				}
				if r.At != nil {
					at = *r.At
				}
				if r.Paused != nil {
					paused = fmt.Sprint(*r.Paused)
				}
				if r.RunStatus != nil {
					status = *r.RunStatus
				}
				if r.RunStartTime != nil {
					start = *r.RunStartTime
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Name, sched, cron, at, paused, status, start)
			}
			return w.Flush()
		},
	}
}

func pipelineCmd() *cobra.Command {
	var schedule bool
	cmd := &cobra.Command{
		Use:   "pipeline <name>",
		Short: "inspect or act on a pipeline by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if schedule {
				// pipeline_id is resolved by summary in a real front-end;
				// here we accept it directly as the positional argument.
				var pipelineID int64
				if _, err := fmt.Sscanf(args[0], "%d", &pipelineID); err != nil {
					return fmt.Errorf("pipeline id must be numeric: %w", err)
				}
				return rpc.Call(cfg.SocketFile, rpc.MethodSetSchedule, pipelineID)
			}
			return fmt.Errorf("no action specified; use --schedule")
		},
	}
	cmd.Flags().BoolVar(&schedule, "schedule", false, "add a new parked schedule to this pipeline")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var cronExpr, at string
	var now, del bool
	cmd := &cobra.Command{
		Use:   "schedule <id>",
		Short: "retarget or remove a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var scheduleID int64
			if _, err := fmt.Sscanf(args[0], "%d", &scheduleID); err != nil {
				return fmt.Errorf("schedule id must be numeric: %w", err)
			}
			switch {
			case cronExpr != "":
				return rpc.Call(cfg.SocketFile, rpc.MethodSetScheduleCron, scheduleID, cronExpr)
			case at != "":
				return rpc.Call(cfg.SocketFile, rpc.MethodSetScheduleAt, scheduleID, at)
			case now:
				return rpc.Call(cfg.SocketFile, rpc.MethodSetScheduleNow, scheduleID)
			case del:
				return rpc.Call(cfg.SocketFile, rpc.MethodDeleteSchedule, scheduleID)
			default:
				return fmt.Errorf("no action specified; use --cron, --at, --now or --delete")
			}
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", "set a five-field cron expression")
	cmd.Flags().StringVar(&at, "at", "", "set a one-shot ISO-8601 instant")
	cmd.Flags().BoolVar(&now, "now", false, "fire immediately")
	cmd.Flags().BoolVar(&del, "delete", false, "remove the schedule")
	return cmd
}

func storeCmd() *cobra.Command {
	var add, del string
	var value, table string
	var list bool
	cmd := &cobra.Command{
		Use:   "store <key>",
		Short: "manage the encrypted key-value store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if table == "" {
				table = "common"
			}
			switch {
			case add != "":
				return rpc.Call(cfg.SocketFile, rpc.MethodSetKeyValue, add, value, table)
			case del != "":
				return rpc.Call(cfg.SocketFile, rpc.MethodDeleteKey, del, table)
			case list:
				kv, err := store.Open(cfg.SQLiteDir, cfg.SQLiteKVName, cfg.SQLiteToken)
				if err != nil {
					return err
				}
				defer kv.Close()
				pairs, err := kv.AllKeyValues(cmd.Context(), table)
				if err != nil {
					return err
				}
				for k, v := range pairs {
					fmt.Printf("%s=%s\n", k, v)
				}
				return nil
			default:
				return fmt.Errorf("no action specified; use --add, --delete or --ls")
			}
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "key to add or replace")
	cmd.Flags().StringVar(&value, "value", "", "value for --add")
	cmd.Flags().StringVar(&del, "delete", "", "key to delete")
	cmd.Flags().BoolVar(&list, "ls", false, "list all key-value pairs")
	cmd.Flags().StringVar(&table, "table", "common", "store table name")
	return cmd
}

func devCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "--dev <msg>",
		Hidden: true,
		Short:  "developer scratch command",
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(args[0])
			return nil
		},
	}
}
