package entities

import "time"

// StorageInfo aggregates document storage use.
type StorageInfo struct {
	TotalSize        int64     `json:"total_size"`
	DocumentCount    int       `json:"document_count"`
	LastCalculatedAt time.Time `json:"last_calculated_at"`
}

// Remaining returns the bytes left under MaxUserQuota, never negative.
func (s StorageInfo) Remaining() int64 {
	if s.TotalSize >= MaxUserQuota {
		return 0
	}
	return MaxUserQuota - s.TotalSize
}

// UsedRatio is TotalSize as a fraction of MaxUserQuota.
func (s StorageInfo) UsedRatio() float64 {
	return float64(s.TotalSize) / float64(MaxUserQuota)
}
