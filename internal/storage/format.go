package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

var (
	// QCOW2 headers start with "QFI\xfb".
	// https://www.qemu.org/docs/master/interop/qcow2.html
	qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

	// Boot sector signature at offset 510. GPT disks carry it in their
	// protective MBR too.
	mbrSignature = []byte{0x55, 0xaa}
)

// DetectImageFormat detects the disk image format of a file by its magic
// bytes. Only qcow2 images and bootable raw images are recognised.
func DetectImageFormat(filePath string) (VolumeFormat, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return detectFormat(f)
}

func detectFormat(r io.ReadSeeker) (VolumeFormat, error) {
	magic := make([]byte, len(qcow2Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return "", fmt.Errorf("file too small to be valid image (< 4 bytes): %w", err)
	}
	if bytes.Equal(magic, qcow2Magic) {
		return VolumeFormatQCOW2, nil
	}

	if _, err := r.Seek(510, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek to boot sector signature: %w", err)
	}
	sig := make([]byte, len(mbrSignature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return "", fmt.Errorf("file too small for boot sector (< 512 bytes): %w", err)
	}
	if bytes.Equal(sig, mbrSignature) {
		return VolumeFormatRaw, nil
	}

	return "", fmt.Errorf("unsupported or invalid image: not qcow2 and missing boot sector signature")
}
