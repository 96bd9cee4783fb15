package blob

import (
	"fmt"
	"time"
)

// extensions maps declared artifact content types to path extensions.
// Unknown types fall back to .bin; the stored content type is authoritative,
// the extension is cosmetic.
var extensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"application/pdf": "pdf",
	"video/mp4":       "mp4",
}

// EvidencePath builds the storage path for an evidence submission:
//
//	favours/{debtorID}_{recipientID}_{RFC3339 timestamp}/evidence.<ext>
//
// The timestamp must be fresh at the call site: it is what makes repeated
// submissions for the same pair land at distinct paths instead of silently
// overwriting a prior artifact.
func EvidencePath(debtorID, recipientID string, at time.Time, contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = "bin"
	}
	return fmt.Sprintf("favours/%s_%s_%s/evidence.%s",
		debtorID, recipientID, at.UTC().Format(time.RFC3339), ext)
}
