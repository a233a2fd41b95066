// Command bitdb is the thin CLI entry point: it parses flags, wires
// config.Config and a zerolog.Logger into an engine.Engine, and dispatches
// to one of a handful of subcommands. All real logic lives in the packages
// under this repository; main only wires them together.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Priyanshu23/bitdb/bord"
	"github.com/Priyanshu23/bitdb/config"
	"github.com/Priyanshu23/bitdb/engine"
	"github.com/Priyanshu23/bitdb/internal/sentinel"
	"github.com/Priyanshu23/bitdb/keyword"
)

var (
	flagConfig  string
	flagSchema  string
	flagRows    int
	flagSelect  string
	flagColumn  string
	flagBudget  int
	flagDelims  string
	flagKeyword string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bitdb",
		Short: "query and maintain column-oriented bitmap-indexed partitions",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a gParameters-equivalent config file")
	root.PersistentFlags().StringVar(&flagSchema, "schema", "", "comma-separated col:type pairs (e.g. x:int,name:text)")
	root.PersistentFlags().IntVar(&flagRows, "rows", 0, "partition row count")

	queryCmd := &cobra.Command{
		Use:   "query <partition-dir>",
		Short: "select columns from a partition and dump the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().StringVar(&flagSelect, "select", "", "comma-separated column names, default all")

	buildIndexCmd := &cobra.Command{
		Use:   "build-index <partition-dir>",
		Short: "build and persist a bitmap index for one column",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuildIndex,
	}
	buildIndexCmd.Flags().StringVar(&flagColumn, "column", "", "column to index")
	buildIndexCmd.MarkFlagRequired("column")

	buildRosterCmd := &cobra.Command{
		Use:   "build-roster <partition-dir>",
		Short: "build an external-memory sorted roster for one column",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuildRoster,
	}
	buildRosterCmd.Flags().StringVar(&flagColumn, "column", "", "column to sort")
	buildRosterCmd.Flags().IntVar(&flagBudget, "budget", 1<<20, "in-memory run size budget, values")
	buildRosterCmd.MarkFlagRequired("column")

	buildKeywordCmd := &cobra.Command{
		Use:   "build-keyword <partition-dir>",
		Short: "tokenize a text column and build its keyword index",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuildKeyword,
	}
	buildKeywordCmd.Flags().StringVar(&flagColumn, "column", "", "text column to index")
	buildKeywordCmd.Flags().StringVar(&flagDelims, "delimiters", "", "split on this delimiter set instead of the default non-alphanumeric splitter")
	buildKeywordCmd.MarkFlagRequired("column")

	searchCmd := &cobra.Command{
		Use:   "search <partition-dir>",
		Short: "look a term up in a column's keyword index and print matching row ids",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().StringVar(&flagColumn, "column", "", "text column to search")
	searchCmd.Flags().StringVar(&flagKeyword, "term", "", "term to look up")
	searchCmd.MarkFlagRequired("column")
	searchCmd.MarkFlagRequired("term")

	describeCmd := &cobra.Command{
		Use:   "describe <partition-dir>",
		Short: "print a human-readable summary of a partition's columns",
		Args:  cobra.ExactArgs(1),
		RunE:  runDescribe,
	}

	root.AddCommand(queryCmd, buildIndexCmd, buildRosterCmd, buildKeywordCmd, searchCmd, describeCmd)
	return root
}

// parseSchema turns "x:int,name:text" into ColumnSpecs, the stand-in for
// the schema catalog a full deployment would load from partition metadata.
func parseSchema(s string) ([]engine.ColumnSpec, error) {
	if s == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	var specs []engine.ColumnSpec
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid schema entry %q, want col:type", pair)
		}
		typ, err := parseType(parts[1])
		if err != nil {
			return nil, err
		}
		specs = append(specs, engine.ColumnSpec{Name: parts[0], Type: typ})
	}
	return specs, nil
}

func parseType(s string) (sentinel.Type, error) {
	switch strings.ToLower(s) {
	case "byte":
		return sentinel.Byte, nil
	case "ubyte":
		return sentinel.UByte, nil
	case "short":
		return sentinel.Short, nil
	case "ushort":
		return sentinel.UShort, nil
	case "int":
		return sentinel.Int, nil
	case "uint":
		return sentinel.UInt, nil
	case "long":
		return sentinel.Long, nil
	case "ulong":
		return sentinel.ULong, nil
	case "float":
		return sentinel.Float, nil
	case "double":
		return sentinel.Double, nil
	case "category":
		return sentinel.Category, nil
	case "text":
		return sentinel.Text, nil
	default:
		return sentinel.Unknown, fmt.Errorf("unknown column type %q", s)
	}
}

func newEngine() (*engine.Engine, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(cfg.LogLevel)
	return engine.New(cfg, log), nil
}

func openPartition(e *engine.Engine, dir string) (*engine.Partition, error) {
	specs, err := parseSchema(flagSchema)
	if err != nil {
		return nil, err
	}
	if flagRows <= 0 {
		return nil, fmt.Errorf("--rows must be a positive row count")
	}
	return e.OpenPartition("default", dir, specs, flagRows), nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	p, err := openPartition(e, args[0])
	if err != nil {
		return err
	}

	var sel []string
	if flagSelect != "" {
		sel = strings.Split(flagSelect, ",")
	}
	tbl, err := p.Select(sel, nil)
	if err != nil {
		return err
	}
	return tbl.Dump(cmd.OutOrStdout(), 0, tbl.NRows(), "\t")
}

func runBuildIndex(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	p, err := openPartition(e, args[0])
	if err != nil {
		return err
	}
	return p.BuildIndex(flagColumn)
}

func runBuildRoster(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	p, err := openPartition(e, args[0])
	if err != nil {
		return err
	}
	return p.BuildRoster(flagColumn, flagBudget)
}

func runBuildKeyword(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	p, err := openPartition(e, args[0])
	if err != nil {
		return err
	}
	var tok keyword.Tokenizer = keyword.DefaultTokenizer{}
	if flagDelims != "" {
		tok = keyword.DelimiterTokenizer{Delimiters: flagDelims}
	}
	return p.BuildKeywordIndex(flagColumn, tok)
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	p, err := openPartition(e, args[0])
	if err != nil {
		return err
	}
	hits, err := p.SearchKeyword(flagColumn, flagKeyword)
	if err != nil {
		return err
	}
	for _, row := range hits.Positions() {
		fmt.Fprintln(cmd.OutOrStdout(), row)
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	p, err := openPartition(e, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "partition %q: %s rows\n", args[0], humanize.Comma(int64(p.NRows())))
	for _, desc := range describeColumns(p) {
		line, err := e.DescribeColumn("default", desc.Name)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", desc.Name, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
	}
	return nil
}

func describeColumns(p *engine.Partition) []bord.ColumnDesc {
	names := p.ColumnNames()
	out := make([]bord.ColumnDesc, 0, len(names))
	for _, n := range names {
		typ, _ := p.ColumnType(n)
		out = append(out, bord.ColumnDesc{Name: n, Type: typ})
	}
	return out
}
