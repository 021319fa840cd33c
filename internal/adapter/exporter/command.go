package exporter

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/confkeep/confkeep/internal/config"
	"github.com/confkeep/confkeep/internal/domain"
)

// CommandExporter runs the appliance's firmware export command and
// gzips its stdout into the archive.
type CommandExporter struct {
	config     *config.DeviceConfig
	compressor domain.Compressor
}

func NewCommand(cfg *config.DeviceConfig, comp domain.Compressor) *CommandExporter {
	return &CommandExporter{config: cfg, compressor: comp}
}

func (e *CommandExporter) Export(ctx context.Context, outputPath string) error {
	rawPath := outputPath + ".raw"

	rawFile, err := os.Create(rawPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(rawPath)

	cmd := exec.CommandContext(ctx, e.config.ExportCommand, e.config.ExportArgs...)
	cmd.Stdout = rawFile

	runErr := cmd.Run()
	if closeErr := rawFile.Close(); runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return fmt.Errorf("export command %s failed: %w", e.config.ExportCommand, runErr)
	}

	if err := e.compressor.Compress(rawPath, outputPath); err != nil {
		return fmt.Errorf("compress export: %w", err)
	}

	return nil
}

func (e *CommandExporter) Host() string {
	return e.config.Hostname
}

func (e *CommandExporter) Ext() string {
	return ".export.gz"
}
