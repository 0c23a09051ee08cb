// SPDX-License-Identifier: Apache-2.0

package domain

import "strings"

// MIME types produced and consumed by the tool catalog.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
	MIMEGIF  = "image/gif"
)

// acceptedMIMEs is the per-tool input gate. A nil entry means the tool
// accepts any image/* payload.
var acceptedMIMEs = map[ToolID][]string{
	ToolResize:    nil,
	ToolCompress:  nil,
	ToolCrop:      nil,
	ToolRotate:    nil,
	ToolWatermark: nil,
	ToolToWebp:    {MIMEPNG, MIMEJPEG},
	ToolPDFEmbed:  {MIMEPNG, MIMEJPEG, MIMEWebP},
}

// CanAccept reports whether target can take an artifact of the given MIME
// type as input. Checked before every handoff so an incompatible step is
// refused before navigation, not after.
func CanAccept(mimeType string, target ToolID) bool {
	accepted, ok := acceptedMIMEs[target]
	if !ok {
		return false
	}

	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if accepted == nil {
		return strings.HasPrefix(mime, "image/")
	}

	for _, a := range accepted {
		if mime == a {
			return true
		}
	}
	return false
}

// AcceptedMIMEs returns the explicit input allowlist for a tool, or nil
// when the tool accepts any image/* payload.
func AcceptedMIMEs(target ToolID) []string {
	accepted := acceptedMIMEs[target]
	if accepted == nil {
		return nil
	}
	out := make([]string, len(accepted))
	copy(out, accepted)
	return out
}
