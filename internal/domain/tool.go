// SPDX-License-Identifier: Apache-2.0

package domain

// ToolID identifies one image-processing capability. The set is closed:
// views are routed by ToolID, so an unknown value has nowhere to go.
type ToolID string

const (
	ToolResize    ToolID = "RESIZE"
	ToolCompress  ToolID = "COMPRESS"
	ToolToWebp    ToolID = "TO_WEBP"
	ToolCrop      ToolID = "CROP"
	ToolRotate    ToolID = "ROTATE"
	ToolWatermark ToolID = "WATERMARK"
	ToolPDFEmbed  ToolID = "PDF_EMBED"
)

// AllTools lists every routable tool in catalog order.
func AllTools() []ToolID {
	return []ToolID{
		ToolResize,
		ToolCompress,
		ToolToWebp,
		ToolCrop,
		ToolRotate,
		ToolWatermark,
		ToolPDFEmbed,
	}
}

// ValidTool reports whether id names a tool in the catalog.
func ValidTool(id ToolID) bool {
	switch id {
	case ToolResize, ToolCompress, ToolToWebp, ToolCrop,
		ToolRotate, ToolWatermark, ToolPDFEmbed:
		return true
	}
	return false
}
