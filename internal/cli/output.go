package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pablasso/etp/internal/statustree"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatTree  = "tree"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func addOutputFlag(cmd *cobra.Command, target *string, human string) {
	cmd.Flags().StringVarP(target, "output", "o", human, "output format: "+human+", json, yaml")
}

// render writes v as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format, human string, v any, text func() string) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case human:
		_, err := fmt.Fprintln(w, text())
		return err
	default:
		return fmt.Errorf("unknown output format %q (valid: %s, json, yaml)", format, human)
	}
}

// renderTree draws the visible part of tree, one node per line.
func renderTree(tree []*statustree.Node, now time.Time) string {
	rows := statustree.Visible(tree)
	if len(rows) == 0 {
		return muted("no steps")
	}

	var sb strings.Builder
	for i, r := range rows {
		n := r.Node
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Repeat("  ", r.Depth))
		sb.WriteString(treeMarker(n))
		sb.WriteString(" ")
		sb.WriteString(n.Name)
		fmt.Fprintf(&sb, "  %s %3d%%", statusText(n), n.Progress)
		if n.User != "" {
			sb.WriteString(muted("  " + n.User))
		}
		if n.TimeStarted != nil {
			sb.WriteString(muted("  started " + humanize.RelTime(*n.TimeStarted, now, "ago", "from now")))
		}
		if n.Expanded && (n.NextPage != 0 || n.PrevPage != 0) {
			sb.WriteString(muted(fmt.Sprintf("  page %d", n.PageNumber)))
			if n.PrevPage != 0 {
				sb.WriteString(muted(" ‹prev"))
			}
			if n.NextPage != 0 {
				sb.WriteString(muted(" next›"))
			}
		}
		sb.WriteString(muted("  [" + n.ID + "]"))
	}
	return sb.String()
}

func treeMarker(n *statustree.Node) string {
	switch {
	case !n.IsStep():
		return "•"
	case n.Expanded:
		return "▾"
	default:
		return "▸"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
