// SPDX-License-Identifier: Apache-2.0

package domain

// Artifact is one binary output of an image tool. The orchestrator never
// interprets Data; it only moves it between views.
type Artifact struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}
