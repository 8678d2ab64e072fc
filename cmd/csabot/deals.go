package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/archive"
	"github.com/anishmolla/creator-support-army-bot/internal/clifmt"
)

func newDealsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deals",
		Short: "Inspect archived agreements",
	}
	cmd.AddCommand(newDealsListCmd())
	return cmd
}

func newDealsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived agreements by reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			status, _ := cmd.Flags().GetString("status")
			chatID, _ := cmd.Flags().GetInt64("chat")

			filter := archive.Filter{ChatID: chatID}
			if s := strings.ToLower(strings.TrimSpace(status)); s != "" {
				st, err := parseStatusFilter(s)
				if err != nil {
					return err
				}
				filter.Status = st
			}

			arc, err := openArchive(cmd.Context(), flagOrViperString(cmd, "archive-driver", "archive.driver"))
			if err != nil {
				return err
			}
			defer arc.Close()

			recs, err := arc.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeDeals(cmd.OutOrStdout(), archive.FilterRecords(recs, filter), format)
		},
	}
	cmd.Flags().String("format", "table", "Output format: table|json|yaml.")
	cmd.Flags().String("status", "", "Only show agreements with this status: pending|accepted|expired|canceled.")
	cmd.Flags().Int64("chat", 0, "Only show agreements of this chat id.")
	cmd.Flags().String("archive-driver", "", "Agreement archive: file|sqlite|none.")
	return cmd
}

func parseStatusFilter(s string) (agreement.Status, error) {
	switch st := agreement.Status(s); st {
	case agreement.StatusPending, agreement.StatusAccepted, agreement.StatusExpired, agreement.StatusCanceled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q (expected pending|accepted|expired|canceled)", s)
	}
}

func writeDeals(out io.Writer, recs []archive.Record, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		printDealsTable(out, recs)
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(nonNil(recs))
	case "yaml", "yml":
		// Round-trip through JSON so YAML keys match the json tags.
		raw, err := json.Marshal(nonNil(recs))
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		b, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	default:
		return fmt.Errorf("unknown format %q (expected table|json|yaml)", format)
	}
}

func nonNil(recs []archive.Record) []archive.Record {
	if recs == nil {
		return []archive.Record{}
	}
	return recs
}

func printDealsTable(out io.Writer, recs []archive.Record) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Ref,
			string(r.Status),
			strconv.FormatInt(r.ChatID, 10),
			r.Initiator.Display(),
			r.Partner.Tag(),
			r.UpdatedAt.Local().Format(time.DateTime),
			r.Details,
		})
	}
	clifmt.PrintTable(out, clifmt.TableOptions{
		Title: "Agreements",
		Columns: []clifmt.Column{
			{Header: "REF"},
			{Header: "STATUS", Style: statusCell},
			{Header: "CHAT", Style: clifmt.Dim},
			{Header: "FROM"},
			{Header: "TO"},
			{Header: "UPDATED", Style: clifmt.Dim},
			{Header: "DETAILS"},
		},
		Rows:      rows,
		EmptyText: "No archived agreements.",
	})
}

// statusCell colors a padded status cell without touching its padding.
func statusCell(cell string) string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return cell
	}
	return strings.Replace(cell, s, clifmt.Status(s), 1)
}
