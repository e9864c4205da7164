// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Contents of the loading attribute at the two ends of the handshake.
var (
	loadingStart = []byte("1\n")
	loadingDone  = []byte("0\n")
)

// attributeFile is a write handle on one sysfs attribute. Unlike an
// io.Writer, Write may return n < len(p) with a nil error: a single
// write(2) to a sysfs attribute is not guaranteed to consume the whole
// buffer, and the caller owns the retry loop.
type attributeFile interface {
	Write(p []byte) (int, error)
	Close() error
}

// attributeOpener opens a sysfs attribute for writing.
type attributeOpener func(path string) (attributeFile, error)

// Delivery describes a completed handshake.
type Delivery struct {
	// Size is the length of the payload that was to be written to the
	// data attribute (after decoding, for compressed sources). Zero
	// when no source was configured.
	Size int64

	// Written is the number of payload bytes the kernel accepted. It
	// is less than Size only when a data write made no progress.
	Written int64

	// Digest is the hex BLAKE3-256 digest of the payload. Empty when
	// no source was configured.
	Digest string
}

// Short reports whether the kernel stopped accepting data before the
// whole payload was written.
func (d Delivery) Short() bool { return d.Written < d.Size }

// Deliverer runs the loading/data handshake against request nodes.
type Deliverer struct {
	open attributeOpener

	// maxPayload caps the decoded size of compressed sources. Zero
	// means DefaultMaxPayloadSize.
	maxPayload int64
}

// NewDeliverer returns a Deliverer that writes to real sysfs
// attributes.
func NewDeliverer() *Deliverer {
	return &Deliverer{open: openSysfsAttribute, maxPayload: DefaultMaxPayloadSize}
}

func (d *Deliverer) payloadLimit() int64 {
	if d.maxPayload <= 0 || d.maxPayload > DefaultMaxPayloadSize {
		return DefaultMaxPayloadSize
	}
	return d.maxPayload
}

// Deliver hands the contents of source to the kernel through the request
// node directory node. An empty source signals that no firmware is
// available: loading is toggled 1 then 0 with no data write.
//
// Every descriptor and mapping opened here is released before Deliver
// returns, on success and on error. An error leaves the node in
// whatever state the kernel assigns to an unfinished load; no cleanup
// write is attempted.
func (d *Deliverer) Deliver(node, source string) (Delivery, error) {
	loadingPath := filepath.Join(node, "loading")
	dataPath := filepath.Join(node, "data")

	if _, err := d.writeAttribute(loadingPath, loadingStart); err != nil {
		return Delivery{}, err
	}

	var delivery Delivery
	if source != "" {
		var err error
		delivery, err = d.deliverSource(dataPath, source)
		if err != nil {
			return delivery, err
		}
	}

	if _, err := d.writeAttribute(loadingPath, loadingDone); err != nil {
		return delivery, err
	}
	return delivery, nil
}

// deliverSource maps source, decodes it if its name says it is
// compressed, and writes the payload to the data attribute.
func (d *Deliverer) deliverSource(dataPath, source string) (Delivery, error) {
	mapped, err := mapSource(source)
	if err != nil {
		return Delivery{}, err
	}
	defer mapped.release()

	var (
		payload []byte
		digest  string
	)
	err = guardFault(func() error {
		var decodeErr error
		payload, decodeErr = decodePayload(source, mapped.data, d.payloadLimit())
		if decodeErr != nil {
			return newError(KindDecode, source, decodeErr)
		}
		digest = digestPayload(payload)
		return nil
	})
	if err != nil {
		var deliveryErr *Error
		if errors.As(err, &deliveryErr) {
			return Delivery{}, err
		}
		return Delivery{}, newError(KindMap, source, err)
	}

	written, err := d.writeAttribute(dataPath, payload)
	delivery := Delivery{
		Size:    int64(len(payload)),
		Written: int64(written),
		Digest:  digest,
	}
	return delivery, err
}

// writeAttribute opens path, writes payload with writeFull, and closes
// it. The returned count is the number of bytes accepted.
func (d *Deliverer) writeAttribute(path string, payload []byte) (int, error) {
	file, err := d.open(path)
	if err != nil {
		return 0, newError(KindFileOpen, path, err)
	}

	written, writeErr := writeFull(file, payload)
	closeErr := file.Close()
	if writeErr != nil {
		return written, newError(KindWrite, path, writeErr)
	}
	if closeErr != nil {
		return written, newError(KindWrite, path, fmt.Errorf("closing: %w", closeErr))
	}
	return written, nil
}

// writeFull writes payload to file, re-issuing the write for whatever
// remains after a short write. It stops early, without error, if a
// write makes no progress. EINTR is retried.
func writeFull(file attributeFile, payload []byte) (int, error) {
	written := 0
	for written < len(payload) {
		count, err := file.Write(payload[written:])
		if count > 0 {
			written += count
		}
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return written, err
		}
		if count <= 0 {
			break
		}
	}
	return written, nil
}

// sysfsAttribute is a raw file descriptor. Writes go straight to
// write(2) so short writes reach writeFull instead of being absorbed by
// os.File's internal loop.
type sysfsAttribute int

func openSysfsAttribute(path string) (attributeFile, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return sysfsAttribute(fd), nil
}

func (a sysfsAttribute) Write(p []byte) (int, error) {
	count, err := unix.Write(int(a), p)
	if count < 0 {
		count = 0
	}
	return count, err
}

func (a sysfsAttribute) Close() error {
	return unix.Close(int(a))
}
