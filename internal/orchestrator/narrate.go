package orchestrator

import (
	"fmt"

	"docmigrate/internal/engine"
	"docmigrate/internal/organizer"
	"docmigrate/internal/resolver"
	"docmigrate/internal/tokenize"
)

// Narrate turns one rebuild decision into log lines. Classification stays in the
// engine; this is only its human-readable echo.
func Narrate(ir engine.ItemResult, action organizer.Action, dryRun bool) []string {
	name := ir.Expectation.DisplayName
	origin := "-> from " + ir.Item.Source()
	if ir.Item.Origin == resolver.MappingRow {
		origin = fmt.Sprintf("(row %d)", ir.Item.Row)
	}

	switch ir.Outcome {
	case engine.SkippedDuplicate:
		return []string{fmt.Sprintf("⚠️ Duplicate in flat (skipped): %s %s", name, origin)}
	case engine.Missing:
		if ir.Reason == engine.ReasonAlreadyPlaced {
			return []string{fmt.Sprintf("⚠️ Already placed by an earlier item: %s %s", name, origin)}
		}
		return []string{fmt.Sprintf("⚠️ Missing in flat: %s %s", name, origin)}
	case engine.Failed:
		return []string{fmt.Sprintf("❌ Error for %s: %v", name, ir.Err)}
	}

	line := fmt.Sprintf("✅ %s: %s -> %s", placedVerb(action, dryRun), name, ir.DestPath)
	if ir.Renamed {
		line += " (renamed)"
	}
	lines := []string{line}
	if ir.Overwrote {
		lines = append(lines, "⚠️ Overwrote existing file: "+ir.DestPath)
	}
	return lines
}

func placedVerb(action organizer.Action, dryRun bool) string {
	switch {
	case dryRun && action == organizer.ActionCopy:
		return "Would copy"
	case dryRun:
		return "Would move"
	case action == organizer.ActionCopy:
		return "Copied"
	default:
		return "Moved"
	}
}

// NarrateToken turns one tokenize record into a log line.
func NarrateToken(rec tokenize.Record) string {
	if rec.Status == tokenize.StatusError {
		if rec.Token == "" {
			return fmt.Sprintf("❌ ERROR token: %s -> %s", rec.SourcePath, rec.Reason)
		}
		return fmt.Sprintf("❌ ERROR copy/rename: %s -> %s", rec.SourcePath, rec.Reason)
	}
	line := fmt.Sprintf("✅ %s: %s -> %s", rec.Action, rec.OriginalName, rec.NewName)
	if rec.Reason != "" {
		line += " (" + rec.Reason + ")"
	}
	return line
}

func reportWritten(path string) string {
	return "📄 Report written: " + path
}
