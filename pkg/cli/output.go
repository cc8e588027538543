// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeremyhahn/go-mantavfs/pkg/version"
	"github.com/jeremyhahn/go-mantavfs/pkg/vfs"
)

// OutputFormat defines the output format type.
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
)

// OperationResult holds the result of an operation.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// FormatOperationResult formats an operation result in the specified format.
func FormatOperationResult(result *OperationResult, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(result)
	case FormatTable:
		return formatResultTable(result)
	default:
		return formatResultText(result)
	}
}

// FormatListResult formats a directory listing in the specified format.
func FormatListResult(dir string, entries []*vfs.FileInfo, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(map[string]any{
			"path":    dir,
			"count":   len(entries),
			"entries": entries,
		})
	case FormatTable:
		return formatListTable(entries)
	default:
		return formatListText(entries)
	}
}

// FormatStatResult formats a single node description.
func FormatStatResult(info *vfs.FileInfo, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(info)
	case FormatTable:
		return formatStatTable(info)
	default:
		return formatStatText(info)
	}
}

// FormatAttributesResult formats a node's attributes, sorted by key.
func FormatAttributesResult(path string, attrs map[string]string, format OutputFormat) string {
	switch format {
	case FormatJSON:
		if attrs == nil {
			attrs = map[string]string{}
		}
		return formatJSON(map[string]any{"path": path, "attributes": attrs})
	case FormatTable:
		return formatKeyValueTable("Attribute", sortedPairs(attrs))
	default:
		if len(attrs) == 0 {
			return "No attributes\n"
		}
		var output string
		for _, kv := range sortedPairs(attrs) {
			output += fmt.Sprintf("%s=%s\n", kv[0], kv[1])
		}
		return output
	}
}

// FormatVersionResult formats the build stamp.
func FormatVersionResult(info version.Info, format OutputFormat) string {
	switch format {
	case FormatJSON:
		return formatJSON(info)
	case FormatTable:
		return formatKeyValueTable("Field", [][2]string{
			{"Version", info.Version},
			{"Commit", info.Commit},
			{"Build Date", info.BuildDate},
			{"Go Version", info.GoVersion},
			{"Platform", info.Platform},
		})
	default:
		return info.String() + "\n"
	}
}

// FormatError formats an error message in the specified format.
func FormatError(err error, format OutputFormat) string {
	result := &OperationResult{
		Success: false,
		Error:   err.Error(),
	}
	return FormatOperationResult(result, format)
}

func formatResultText(result *OperationResult) string {
	if result.Success {
		if result.Message != "" {
			return result.Message + "\n"
		}
		return "Operation completed successfully\n"
	}
	return fmt.Sprintf("Error: %s\n", result.Error)
}

func formatResultTable(result *OperationResult) string {
	status, text := "SUCCESS", result.Message
	if !result.Success {
		status, text = "FAILED", result.Error
	}

	output := "┌────────────────────────────────────────────────────────┐\n"
	output += "│ Operation Result                                       │\n"
	output += "├────────────────────────────────────────────────────────┤\n"
	output += fmt.Sprintf("│ Status: %-46s │\n", status)
	if text != "" {
		for _, line := range wrapText(text, 54) {
			output += fmt.Sprintf("│ %-54s │\n", line)
		}
	}
	output += "└────────────────────────────────────────────────────────┘\n"
	return output
}

func formatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": \"failed to marshal JSON: %s\"}\n", err)
	}
	return string(data) + "\n"
}

func formatListText(entries []*vfs.FileInfo) string {
	if len(entries) == 0 {
		return "No entries found\n"
	}

	var output string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		output += fmt.Sprintf("%s  %10s  %s  %s\n",
			entry.Mode(), entrySize(entry), entry.ModTime().UTC().Format(time.RFC3339), name)
	}
	return output
}

func formatListTable(entries []*vfs.FileInfo) string {
	if len(entries) == 0 {
		return "No entries found\n"
	}

	var output string
	output += "┌────────────────────────────────────┬──────────────┬──────────────────────┐\n"
	output += "│ Name                               │ Size         │ Last Modified        │\n"
	output += "├────────────────────────────────────┼──────────────┼──────────────────────┤\n"

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		modified := entry.ModTime().UTC().Format("2006-01-02 15:04:05")
		output += fmt.Sprintf("│ %-34s │ %-12s │ %-20s │\n", truncate(name, 34), entrySize(entry), modified)
	}

	output += "└────────────────────────────────────┴──────────────┴──────────────────────┘\n"
	output += fmt.Sprintf("Total: %d entr%s\n", len(entries), plural(len(entries), "y", "ies"))
	return output
}

func statRows(info *vfs.FileInfo) [][2]string {
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	rows := [][2]string{
		{"Path", info.Path()},
		{"Type", kind},
		{"Size", entrySize(info)},
		{"Mode", info.Mode().String()},
		{"Last Modified", info.ModTime().UTC().Format(time.RFC3339)},
	}
	if info.ContentType() != "" {
		rows = append(rows, [2]string{"Content Type", info.ContentType()})
	}
	if info.ETag() != "" {
		rows = append(rows, [2]string{"ETag", info.ETag()})
	}
	return rows
}

func formatStatText(info *vfs.FileInfo) string {
	var output string
	for _, row := range statRows(info) {
		output += fmt.Sprintf("%s: %s\n", row[0], row[1])
	}
	return output
}

func formatStatTable(info *vfs.FileInfo) string {
	return formatKeyValueTable("Field", statRows(info))
}

func formatKeyValueTable(heading string, rows [][2]string) string {
	var output string
	output += "┌──────────────────────┬────────────────────────────────────────┐\n"
	output += fmt.Sprintf("│ %-20s │ %-38s │\n", heading, "Value")
	output += "├──────────────────────┼────────────────────────────────────────┤\n"
	for _, row := range rows {
		output += fmt.Sprintf("│ %-20s │ %-38s │\n", truncate(row[0], 20), truncate(row[1], 38))
	}
	output += "└──────────────────────┴────────────────────────────────────────┘\n"
	return output
}

func sortedPairs(m map[string]string) [][2]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, len(keys))
	for i, k := range keys {
		pairs[i] = [2]string{k, m[k]}
	}
	return pairs
}

func entrySize(info *vfs.FileInfo) string {
	if info.IsDir() {
		return "-"
	}
	return formatSize(info.Size())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// formatSize formats a byte size into a human-readable string.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// wrapText wraps text to fit within maxWidth characters.
func wrapText(text string, maxWidth int) []string {
	if len(text) <= maxWidth {
		return []string{text}
	}

	if !strings.Contains(text, " ") {
		var lines []string
		for len(text) > maxWidth {
			lines = append(lines, text[:maxWidth])
			text = text[maxWidth:]
		}
		if len(text) > 0 {
			lines = append(lines, text)
		}
		return lines
	}

	var lines []string
	var currentLine string
	for _, word := range strings.Fields(text) {
		switch {
		case currentLine == "":
			currentLine = word
		case len(currentLine)+1+len(word) <= maxWidth:
			currentLine += " " + word
		default:
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}
