// SPDX-License-Identifier: Apache-2.0

// Package artifact converts binary tool outputs to and from the textual
// form that rides through string-keyed storage. The wire shape is a data
// URL (data:<mime>;base64,<payload>) so the MIME type survives the trip
// without a side channel.
package artifact

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/pixeltools/imageflow/internal/domain"
)

const dataURLPrefix = "data:"

// Encode reads the artifact payload from r and returns its data-URL
// form. A read failure is reported as domain.ErrArtifactEncode so
// callers can treat it as "handoff unavailable" without inspecting the
// underlying I/O error.
func Encode(mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrArtifactEncode, err)
	}
	return encodeBytes(mimeType, data), nil
}

// EncodeArtifact encodes an in-memory artifact. It cannot fail: the
// bytes are already in hand.
func EncodeArtifact(a domain.Artifact) string {
	return encodeBytes(a.MIMEType, a.Data)
}

func encodeBytes(mimeType string, data []byte) string {
	mime := strings.TrimSpace(mimeType)
	return dataURLPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode parses an encoded artifact back into its binary form. It
// returns nil on any malformed input so a corrupted handoff reads as
// "no handoff" rather than a hard failure. The MIME type embedded in
// the data URL wins; fallbackMIME fills in when the marker is absent.
func Decode(encoded, fallbackName, fallbackMIME string) *domain.Artifact {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil
	}

	mime := strings.TrimSpace(fallbackMIME)
	payload := encoded

	if strings.HasPrefix(encoded, dataURLPrefix) {
		rest := encoded[len(dataURLPrefix):]
		meta, b64, ok := strings.Cut(rest, ",")
		if !ok {
			return nil
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil
		}
		if m := strings.TrimSuffix(meta, ";base64"); m != "" {
			mime = m
		}
		payload = b64
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}

	return &domain.Artifact{
		FileName: fallbackName,
		MIMEType: mime,
		Data:     data,
	}
}
