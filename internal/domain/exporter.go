package domain

import "context"

type Exporter interface {
	Export(ctx context.Context, outputPath string) error
	Host() string
	Ext() string
}
