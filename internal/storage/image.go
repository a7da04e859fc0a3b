package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ProgressFunc receives the percentage (0-100) of an upload.
type ProgressFunc func(percent int)

// ImportFile uploads a local disk image into a new volume of the pool.
// The volume takes the format detected from the file's magic bytes. On
// failure the half-written volume is removed again.
func (m *Manager) ImportFile(ctx context.Context, poolName, volumeName, filePath string, progress ProgressFunc) (VolumeFormat, error) {
	format, err := DetectImageFormat(filePath)
	if err != nil {
		return "", fmt.Errorf("invalid image %s: %w", filePath, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat image file: %w", err)
	}
	size := uint64(info.Size())

	spec := VolumeSpec{
		Name:     volumeName,
		Format:   format,
		Capacity: size,
	}
	if err := m.CreateVolume(ctx, poolName, spec); err != nil {
		return "", fmt.Errorf("failed to create volume for image: %w", err)
	}

	_, vol, err := m.lookupVolume(poolName, volumeName)
	if err == nil {
		reader := &progressReader{ctx: ctx, r: f, total: size, report: progress, last: -1}
		err = m.client.StorageVolUpload(vol, reader, 0, size, 0)
	}
	if err != nil {
		_ = m.DeleteVolume(ctx, poolName, volumeName)
		return "", fmt.Errorf("failed to upload image data: %w", err)
	}

	return format, nil
}

// progressReader reports how much of total has been read and stops early
// once ctx is cancelled.
type progressReader struct {
	ctx    context.Context
	r      io.Reader
	total  uint64
	read   uint64
	last   int
	report ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := p.r.Read(buf)
	p.read += uint64(n)

	if p.report != nil && p.total > 0 {
		percent := int(p.read * 100 / p.total)
		if percent != p.last {
			p.last = percent
			p.report(percent)
		}
	}

	return n, err
}
