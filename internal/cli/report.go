//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/pgEdge/pgedge-starschema/internal/model"
	"github.com/pgEdge/pgedge-starschema/internal/store"
)

// renderRun writes a run summary: totals, a per-dimension table and any
// data-quality warnings.
func renderRun(w io.Writer, rec store.RunRecord, warnings []string) {
	fmt.Fprintf(w, "Run %s\n", rec.ID)
	fmt.Fprintf(w, "Source: %s\n", rec.SourceName)
	fmt.Fprintf(w, "Started: %s (%s)\n\n",
		rec.StartedAt.Format(time.RFC3339),
		rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))

	totals := tablewriter.NewWriter(w)
	totals.SetHeader([]string{"Stage", "Rows"})
	totals.SetBorder(false)
	totals.SetAutoWrapText(false)
	totals.SetAlignment(tablewriter.ALIGN_LEFT)
	totals.Append([]string{"Staged", strconv.Itoa(rec.Staged)})
	totals.Append([]string{"Filtered", strconv.Itoa(rec.Filtered)})
	for _, rule := range slices.Sorted(maps.Keys(rec.DroppedRule)) {
		totals.Append([]string{"Dropped (" + rule + ")", strconv.Itoa(rec.DroppedRule[rule])})
	}
	totals.Append([]string{"Facts", strconv.Itoa(rec.Facts)})
	totals.Render()
	fmt.Fprintln(w)

	dims := tablewriter.NewWriter(w)
	dims.SetHeader([]string{"Dimension", "Rows", "Conflicts", "Unresolved"})
	dims.SetBorder(false)
	dims.SetAutoWrapText(false)
	dims.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, name := range model.DimensionNames {
		dims.Append([]string{
			name,
			strconv.Itoa(rec.Dimensions[name]),
			strconv.Itoa(rec.Conflicts[name]),
			strconv.FormatInt(rec.Unresolved[name], 10),
		})
	}
	dims.Render()

	if len(warnings) > 0 {
		fmt.Fprintln(w)
		for _, msg := range warnings {
			fmt.Fprintln(w, color.YellowString("WARNING: %s", msg))
		}
	}
}

// renderMetadata writes the init metadata as a key/value table.
func renderMetadata(w io.Writer, md map[string]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Value"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, key := range slices.Sorted(maps.Keys(md)) {
		table.Append([]string{key, md[key]})
	}
	table.Render()
}
