package logging

import "strings"

const shortBatchID = 8

// FormatSubject builds the batch/category/path subject string used in console output.
func FormatSubject(batchID, category, logicalPath string) string {
	batchID = strings.TrimSpace(batchID)
	category = strings.TrimSpace(category)
	logicalPath = strings.TrimSpace(logicalPath)
	parts := make([]string, 0, 3)
	if batchID != "" {
		if len(batchID) > shortBatchID {
			batchID = batchID[:shortBatchID]
		}
		parts = append(parts, "Batch "+batchID)
	}
	switch {
	case category != "" && logicalPath != "":
		parts = append(parts, logicalPath+" ("+category+")")
	case logicalPath != "":
		parts = append(parts, logicalPath)
	case category != "":
		parts = append(parts, category)
	}
	return strings.Join(parts, " · ")
}
