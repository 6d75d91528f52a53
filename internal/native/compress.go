// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// compressPayload deflates a payload frame at the session's configured
// compression level (1-9).
func compressPayload(payload []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressPayload inflates a payload frame compressed by compressPayload.
func decompressPayload(frame []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
