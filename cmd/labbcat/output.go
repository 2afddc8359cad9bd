package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printError prints an error message
func printError(w io.Writer, err error, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]interface{}{
			"error": map[string]interface{}{
				"message":   err.Error(),
				"exit_code": mapErrorToExitCode(err),
			},
		})
		return
	}

	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// printSuccess prints a success message
func printSuccess(w io.Writer, message string, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]interface{}{
			"message": message,
		})
		return
	}

	fmt.Fprintln(w, message)
}

// printStrings prints a list of IDs, one per line.
func printStrings(w io.Writer, items []string, jsonOutput bool) {
	if jsonOutput {
		if items == nil {
			items = []string{}
		}
		printJSON(w, items)
		return
	}
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
}

func printLayers(w io.Writer, layers []*labbcat.Layer, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, layers)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tPARENT\tALIGNMENT\tPEERS\tTYPE\tDESCRIPTION\n")
	fmt.Fprintf(tw, "--\t------\t---------\t-----\t----\t-----------\n")
	for _, l := range layers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			l.ID, l.ParentID, alignmentString(l.Alignment), l.Peers, l.Type, truncate(l.Description, 40))
	}
	tw.Flush()
}

func printLayer(w io.Writer, layer *labbcat.Layer, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, layer)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", layer.ID)
	if layer.ParentID != "" {
		fmt.Fprintf(tw, "Parent:\t%s\n", layer.ParentID)
	}
	if layer.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", layer.Description)
	}
	fmt.Fprintf(tw, "Alignment:\t%s\n", alignmentString(layer.Alignment))
	fmt.Fprintf(tw, "Peers:\t%t\n", layer.Peers)
	fmt.Fprintf(tw, "Peers Overlap:\t%t\n", layer.PeersOverlap)
	fmt.Fprintf(tw, "Parent Includes:\t%t\n", layer.ParentIncludes)
	fmt.Fprintf(tw, "Saturated:\t%t\n", layer.Saturated)
	if layer.Type != "" {
		fmt.Fprintf(tw, "Type:\t%s\n", layer.Type)
	}
	if layer.Category != "" {
		fmt.Fprintf(tw, "Category:\t%s\n", layer.Category)
	}
	if len(layer.ValidLabels) > 0 {
		labels := make([]string, 0, len(layer.ValidLabels))
		for label := range layer.ValidLabels {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		fmt.Fprintf(tw, "Valid Labels:\t%s\n", strings.Join(labels, " "))
	}
	tw.Flush()
}

func printAnnotations(w io.Writer, annotations []*labbcat.Annotation, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, annotations)
		return
	}

	if len(annotations) == 0 {
		fmt.Fprintln(w, "No annotations found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tLABEL\tSTART\tEND\tPARENT\n")
	fmt.Fprintf(tw, "--\t-----\t-----\t---\t------\n")
	for _, a := range annotations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, truncate(a.Label, 40), a.StartID, a.EndID, a.ParentID)
	}
	tw.Flush()
}

func printParticipant(w io.Writer, participant *labbcat.Annotation, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, participant)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", participant.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", participant.Label)
	layerIDs := make([]string, 0, len(participant.Annotations))
	for layerID := range participant.Annotations {
		layerIDs = append(layerIDs, layerID)
	}
	sort.Strings(layerIDs)
	for _, layerID := range layerIDs {
		labels := make([]string, 0, len(participant.Annotations[layerID]))
		for _, a := range participant.Annotations[layerID] {
			labels = append(labels, a.Label)
		}
		fmt.Fprintf(tw, "%s:\t%s\n", layerID, strings.Join(labels, ", "))
	}
	tw.Flush()
}

func printMatches(w io.Writer, matches []*labbcat.Match, jsonOutput bool) {
	if jsonOutput {
		if matches == nil {
			matches = []*labbcat.Match{}
		}
		printJSON(w, matches)
		return
	}

	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TRANSCRIPT\tPARTICIPANT\tLINE\tBEFORE\tMATCH\tAFTER\n")
	fmt.Fprintf(tw, "----------\t-----------\t----\t------\t-----\t-----\n")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%s\n",
			m.Transcript, m.Participant,
			formatSeconds(m.Line), formatSeconds(m.LineEnd),
			truncate(m.BeforeMatch, 30), m.Text, truncate(m.AfterMatch, 30))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d matches\n", len(matches))
}

func printTaskStatus(w io.Writer, status *labbcat.TaskStatus, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, status)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Thread:\t%s\n", status.ThreadID)
	fmt.Fprintf(tw, "Name:\t%s\n", status.ThreadName)
	fmt.Fprintf(tw, "Running:\t%t\n", status.Running)
	fmt.Fprintf(tw, "Progress:\t%d%%\n", status.PercentComplete)
	if status.Status != "" {
		fmt.Fprintf(tw, "Status:\t%s\n", status.Status)
	}
	if status.Duration > 0 {
		fmt.Fprintf(tw, "Duration:\t%s\n", time.Duration(status.Duration)*time.Millisecond)
	}
	if status.ResultURL != "" {
		fmt.Fprintf(tw, "Result:\t%s\n", status.ResultURL)
	}
	tw.Flush()
}

func printTasks(w io.Writer, tasks map[string]*labbcat.TaskStatus, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, tasks)
		return
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}

	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return threadLess(ids[i], ids[j]) })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "THREAD\tNAME\tRUNNING\tPROGRESS\tSTATUS\n")
	fmt.Fprintf(tw, "------\t----\t-------\t--------\t------\n")
	for _, id := range ids {
		t := tasks[id]
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d%%\t%s\n",
			id, truncate(t.ThreadName, 30), t.Running, t.PercentComplete, truncate(t.Status, 40))
	}
	tw.Flush()
}

// printEntries prints ledger entries, with ages relative to now.
func printEntries(w io.Writer, entries []*ledger.Entry, now time.Time, jsonOutput bool) {
	if jsonOutput {
		if entries == nil {
			entries = []*ledger.Entry{}
		}
		printJSON(w, entries)
		return
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No tasks recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "THREAD\tKIND\tSTATUS\tPROGRESS\tSTARTED\tSERVER\tDESCRIPTION\n")
	fmt.Fprintf(tw, "------\t----\t------\t--------\t-------\t------\t-----------\n")
	for _, e := range entries {
		status := e.Status
		if e.Running {
			status = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
			e.ThreadID, e.Kind, truncate(status, 30), e.PercentComplete,
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			e.ServerURL, truncate(e.Description, 40))
	}
	tw.Flush()
}

// printFiles prints downloaded files with their sizes. Empty paths are
// fragments the server could not provide.
func printFiles(w io.Writer, paths []string, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, paths)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, path := range paths {
		if path == "" {
			fmt.Fprintf(tw, "%d\t(not available)\n", i+1)
			continue
		}
		size := "?"
		if info, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Fprintf(tw, "%s\t%s\n", path, size)
	}
	tw.Flush()
}

// printTable prints admin records as a borderless table.
func printTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(false)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// printResponse prints a raw response envelope.
func printResponse(w io.Writer, resp *labbcat.Response) {
	var model interface{}
	if len(resp.Model) > 0 {
		model = resp.Model
	}
	printJSON(w, map[string]interface{}{
		"title":    resp.Title,
		"version":  resp.Version,
		"code":     resp.Code,
		"errors":   nonNil(resp.Errors),
		"messages": nonNil(resp.Messages),
		"model":    model,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// alignmentString converts a layer alignment to a human-readable string
func alignmentString(alignment int) string {
	switch alignment {
	case labbcat.AlignmentNone:
		return "none"
	case labbcat.AlignmentInstant:
		return "instant"
	case labbcat.AlignmentInterval:
		return "interval"
	default:
		return strconv.Itoa(alignment)
	}
}

// formatSeconds formats an offset without trailing zeros.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// threadLess orders numeric thread IDs numerically and others lexically.
func threadLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
