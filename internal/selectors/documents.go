package selectors

import (
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
)

// DocumentsOfType lists the documents of one assignment and type. A zero
// assignment id or empty type matches any.
func DocumentsOfType(documents []entities.Document, assignmentID int64, documentType entities.DocumentType) []entities.Document {
	out := make([]entities.Document, 0)
	for _, document := range documents {
		if assignmentID != 0 && document.AssignmentID != assignmentID {
			continue
		}
		if documentType != "" && document.Type != documentType {
			continue
		}
		out = append(out, document)
	}
	return out
}

// CurrentDocuments keeps the newest version of every chain.
func CurrentDocuments(documents []entities.Document) []entities.Document {
	return entities.CurrentVersions(documents)
}

// VersionHistory lists the chain containing documentID, newest first.
func VersionHistory(documents []entities.Document, documentID int64) []entities.Document {
	return entities.VersionHistory(documents, documentID)
}

// Usage is the storage quota as displayed.
type Usage struct {
	Used          int64
	Limit         int64
	Remaining     int64
	Percent       float64
	DocumentCount int
}

// StorageUsage derives quota usage from the storage aggregate.
func StorageUsage(info entities.StorageInfo) Usage {
	return Usage{
		Used:          info.TotalSize,
		Limit:         entities.MaxUserQuota,
		Remaining:     info.Remaining(),
		Percent:       info.UsedRatio() * 100,
		DocumentCount: info.DocumentCount,
	}
}
