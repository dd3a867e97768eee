// Command rxcache-inspect reports on a cache directory's stored keys,
// sizes, and expiry state without going through the library's public
// API — a read-only diagnostic tool for operators.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tm "github.com/buger/goterm"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rxcache/rxcache/persistence"
)

// hasTTY reports whether stdout is a terminal, the same check the
// teacher's tui package runs once at package init.
var hasTTY = isatty.IsTerminal(os.Stdout.Fd())

func main() {
	root := &cobra.Command{
		Use:   "rxcache-inspect <cache-directory>",
		Short: "Inspect an rxcache on-disk store",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	root.Flags().Bool("clear", false, "clear the terminal screen before printing")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir := args[0]

	if clear, _ := cmd.Flags().GetBool("clear"); clear && hasTTY {
		tm.Clear()
		tm.MoveCursor(1, 1)
		tm.Flush()
	}

	disk, err := persistence.New(dir, nil)
	if err != nil {
		return fmt.Errorf("opening %q: %w", dir, err)
	}

	keys := disk.AllKeys()
	now := time.Now()

	headers := []string{"KEY", "TYPE TAG", "EXPIRABLE", "EXPIRED"}
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		h, ok := disk.RetrieveHeader(key)
		if !ok {
			continue
		}
		rows = append(rows, []string{
			key,
			h.TypeTag,
			fmt.Sprintf("%v", h.Expirable),
			fmt.Sprintf("%v", h.Expirable && h.Expired(now)),
		})
	}

	totalMB, err := totalSize(dir)
	if err != nil {
		return err
	}

	if hasTTY {
		printColorTable(headers, rows)
	} else {
		printPlainTable(headers, rows)
	}

	fmt.Printf("\n%d record(s), %.3f MB on disk\n", len(keys), totalMB)
	return nil
}

func totalSize(dir string) (float64, error) {
	bytes, err := persistence.DirSize(context.Background(), dir)
	if err != nil {
		return 0, err
	}
	return float64(bytes) / (1024 * 1024), nil
}

var tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"})

func printColorTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...)
	fmt.Println(t.String())
}

func printPlainTable(headers []string, rows [][]string) {
	fmt.Println(tm.Bold(joinRow(headers)))
	for _, row := range rows {
		fmt.Println(joinRow(row))
	}
}

func joinRow(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += "\t"
		}
		out += c
	}
	return out
}
