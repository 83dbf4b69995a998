package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/hostview"
	"github.com/ajitpratap0/alphadata/pkg/loader"
	"github.com/ajitpratap0/alphadata/pkg/table"
)

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:   "alphadata",
		Short: "alphadata - columnar dataset access for research and backtesting",
		Long: `alphadata materializes named columnar datasets (parquet, arrow IPC) from a
local directory or object storage and reads them by row, column and window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.start(cmd)
		},
	}
	if err := bindFlags(a.v, root); err != nil {
		panic(err)
	}

	root.AddCommand(
		newVersionCmd(),
		newListCmd(a),
		newInspectCmd(a),
		newValueCmd(a),
		newWindowCmd(a),
		newDumpCmd(a),
	)
	return root, a
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "alphadata v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lister, ok := a.loader.(loader.Lister)
			if !ok {
				return errors.Newf(errors.ErrorTypeConfig, "the %s source cannot list datasets", a.cfg.Datasets.Source)
			}
			names, err := lister.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

type columnInfo struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Type   string `json:"type"`
	Nulls  int    `json:"nulls"`
	Chunks []int  `json:"chunks"`
}

type memoryInfo struct {
	RSSBefore uint64 `json:"rss_before"`
	RSSAfter  uint64 `json:"rss_after"`
	VMS       uint64 `json:"vms"`
}

type datasetInfo struct {
	Name        string       `json:"name"`
	Rows        int          `json:"rows"`
	Columns     []columnInfo `json:"columns"`
	IndexColumn string       `json:"index_column,omitempty"`
	Memory      *memoryInfo  `json:"memory,omitempty"`
}

func describe(t *table.Table) (*datasetInfo, error) {
	info := &datasetInfo{
		Name:        t.Name(),
		Rows:        t.NumRows(),
		IndexColumn: t.IndexColumn(),
		Columns:     make([]columnInfo, 0, t.NumColumns()),
	}
	for col := 0; col < t.NumColumns(); col++ {
		name, err := t.ColumnName(col)
		if err != nil {
			return nil, err
		}
		kind, err := t.ColumnKind(col)
		if err != nil {
			return nil, err
		}
		dt, err := t.ColumnType(col)
		if err != nil {
			return nil, err
		}
		nulls, err := t.NullCount(col)
		if err != nil {
			return nil, err
		}
		chunks, err := t.ChunkLengths(col)
		if err != nil {
			return nil, err
		}
		info.Columns = append(info.Columns, columnInfo{
			Index:  col,
			Name:   name,
			Kind:   kind.String(),
			Type:   dt.String(),
			Nulls:  nulls,
			Chunks: chunks,
		})
	}
	return info, nil
}

func rss() (*process.MemoryInfoStat, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return p.MemoryInfo()
}

func newInspectCmd(a *app) *cobra.Command {
	var withMem bool
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show the schema and chunk layout of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var before *process.MemoryInfoStat
			if withMem {
				var err error
				if before, err = rss(); err != nil {
					return errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
				}
			}

			t, err := a.reg.GetData(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer t.Release()

			info, err := describe(t)
			if err != nil {
				return err
			}
			if withMem {
				after, err := rss()
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
				}
				info.Memory = &memoryInfo{RSSBefore: before.RSS, RSSAfter: after.RSS, VMS: after.VMS}
			}
			return hostview.Encode(cmd.OutOrStdout(), info, true)
		},
	}
	cmd.Flags().BoolVar(&withMem, "mem", false, "Report resident memory before and after materialization")
	return cmd
}

// resolveColumn accepts a logical column index or a column name.
func resolveColumn(t *table.Table, arg string) (int, error) {
	if col, err := strconv.Atoi(arg); err == nil {
		return col, nil
	}
	return t.ColumnIndex(arg)
}

func newValueCmd(a *app) *cobra.Command {
	var row int
	var col string
	cmd := &cobra.Command{
		Use:   "value <name>",
		Short: "Print the value at a row and column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.reg.GetData(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer t.Release()

			c, err := resolveColumn(t, col)
			if err != nil {
				return err
			}
			v, err := hostview.Value(t, row, c)
			if err != nil {
				return err
			}
			return hostview.Encode(cmd.OutOrStdout(), v, false)
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "Row index")
	cmd.Flags().StringVar(&col, "col", "0", "Column index or name")
	return cmd
}

func newWindowCmd(a *app) *cobra.Command {
	var row, offset int
	var col string
	cmd := &cobra.Command{
		Use:   "window <name>",
		Short: "Print the values of a window around a row",
		Long: `Print the values of a window around --row. A negative --offset selects the
trailing rows [row+offset, row], a positive one the leading rows [row, row+offset].
The window is clipped to the table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.reg.GetData(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer t.Release()

			c, err := resolveColumn(t, col)
			if err != nil {
				return err
			}
			points, err := hostview.Window(t, row, c, offset)
			if err != nil {
				return err
			}
			return hostview.Encode(cmd.OutOrStdout(), points, true)
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "Center row")
	cmd.Flags().StringVar(&col, "col", "0", "Column index or name")
	cmd.Flags().IntVar(&offset, "offset", 0, "Window offset relative to the center row")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dump <name>",
		Short: "Print dataset rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.reg.GetData(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer t.Release()
			return hostview.WriteRecords(cmd.OutOrStdout(), t, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to print, 0 for all")
	return cmd
}
