package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"romimport/internal/queue"
)

func buildQueueRows(items []*queue.Item, color bool, keep func(*queue.Item) bool) [][]string {
	rows := make([][]string, 0, len(items))
	for index, item := range items {
		if keep != nil && !keep(item) {
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(index),
			strconv.FormatInt(item.ID, 10),
			statusLabel(item.Status, color),
			string(item.Kind),
			itemSystem(item),
			filepath.Base(item.URL),
			itemDetail(item),
		})
	}
	return rows
}

var queueHeaders = []string{"#", "ID", "Status", "Kind", "System", "File", "Detail"}

var queueAligns = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}

func itemSystem(item *queue.Item) string {
	switch {
	case item.ResolvedSystem != "":
		return item.ResolvedSystem
	case item.ChosenSystem != "":
		return item.ChosenSystem + " (chosen)"
	default:
		return ""
	}
}

// itemDetail explains where an item ended up in one short line.
func itemDetail(item *queue.Item) string {
	switch item.Status {
	case queue.StatusFailure:
		if item.FailureKind != "" {
			return fmt.Sprintf("%s: %s", item.FailureKind, item.ErrorMessage)
		}
		return item.ErrorMessage
	case queue.StatusConflict:
		return "choose one of: " + strings.Join(item.CandidateSystems(), ", ")
	case queue.StatusPartial:
		return "waiting for: " + strings.Join(item.Missing, ", ")
	case queue.StatusSuccess:
		parts := make([]string, 0, 3)
		if item.Duplicate {
			parts = append(parts, "already in library")
		}
		if item.Note != "" {
			parts = append(parts, item.Note)
		}
		if item.EnrichmentNote != "" {
			parts = append(parts, item.EnrichmentNote)
		}
		return strings.Join(parts, "; ")
	default:
		return item.Note
	}
}
