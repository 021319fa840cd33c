package exporter

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/confkeep/confkeep/internal/config"
)

// FilesExporter packs the device's configuration database and secret
// files into a tar.gz archive. Used for appliances without a native
// export command.
type FilesExporter struct {
	config *config.DeviceConfig
}

func NewFiles(cfg *config.DeviceConfig) *FilesExporter {
	return &FilesExporter{config: cfg}
}

func (e *FilesExporter) Export(ctx context.Context, outputPath string) error {
	for _, path := range e.config.ConfigFiles {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config source %s: %w", path, err)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gzipWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, path := range e.config.ConfigFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(tarWriter, path); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}

	return nil
}

func addFile(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar header for %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}

	return nil
}

func (e *FilesExporter) Host() string {
	return e.config.Hostname
}

func (e *FilesExporter) Ext() string {
	return ".tar.gz"
}
