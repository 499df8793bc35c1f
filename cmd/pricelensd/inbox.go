package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/pipeline"
	"github.com/soundimports/pricelens/pkg/storage"
)

// inboxProcessor polls an inbox directory for pricelist files. Files live
// under <inbox>/<supplier>/ and are archived after processing, whether the
// run succeeded or not; a file must never be picked up twice.
type inboxProcessor struct {
	root     string
	interval time.Duration
	pipeline *pipeline.Service
	archive  storage.Storage
	logger   *slog.Logger
}

func newInboxProcessor(root string, interval time.Duration, p *pipeline.Service, archive storage.Storage, logger *slog.Logger) *inboxProcessor {
	return &inboxProcessor{
		root:     root,
		interval: interval,
		pipeline: p,
		archive:  archive,
		logger:   logger,
	}
}

// run polls until the context is cancelled.
func (ip *inboxProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(ip.interval)
	defer ticker.Stop()

	ip.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ip.sweep(ctx)
		}
	}
}

// sweep processes every file currently in the inbox.
func (ip *inboxProcessor) sweep(ctx context.Context) {
	suppliers, err := os.ReadDir(ip.root)
	if err != nil {
		if !os.IsNotExist(err) {
			ip.logger.Error("reading inbox", slog.Any("error", err))
		}
		return
	}

	for _, supplier := range suppliers {
		if !supplier.IsDir() {
			continue
		}
		supplierKey := supplier.Name()

		files, err := os.ReadDir(filepath.Join(ip.root, supplierKey))
		if err != nil {
			ip.logger.Error("reading supplier inbox",
				slog.String("supplier", supplierKey),
				slog.Any("error", err),
			)
			continue
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			ip.processFile(ctx, supplierKey, file.Name())
		}
	}
}

// processFile runs one file through the pipeline and moves it to the
// archive. Decode and pipeline failures still archive the file so a bad
// pricelist cannot wedge the inbox.
func (ip *inboxProcessor) processFile(ctx context.Context, supplierKey, filename string) {
	path := filepath.Join(ip.root, supplierKey, filename)

	doc, err := ip.loadDocument(path, filename)
	if err != nil {
		ip.logger.Error("decoding pricelist",
			slog.String("supplier", supplierKey),
			slog.String("file", filename),
			slog.Any("error", err),
		)
	} else if _, err := ip.pipeline.Process(ctx, supplierKey, doc); err != nil {
		ip.logger.Error("processing pricelist",
			slog.String("supplier", supplierKey),
			slog.String("file", filename),
			slog.Any("error", err),
		)
	}

	if err := ip.archiveFile(ctx, supplierKey, filename, path); err != nil {
		ip.logger.Error("archiving pricelist",
			slog.String("supplier", supplierKey),
			slog.String("file", filename),
			slog.Any("error", err),
		)
	}
}

// loadDocument decodes a file by extension. Spreadsheets and CSVs are
// decoded directly; .txt files carry pre-extracted PDF text, one line per
// row of the original page.
func (ip *inboxProcessor) loadDocument(path, filename string) (*content.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		wb, err := content.LoadWorkbook(f)
		if err != nil {
			return nil, err
		}
		return content.NewWorkbookDocument(filename, wb), nil
	case ".csv":
		wb, err := content.LoadCSV(f, filename)
		if err != nil {
			return nil, err
		}
		return content.NewWorkbookDocument(filename, wb), nil
	case ".txt":
		var lines []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return content.NewPDFDocument(filename, lines, 1), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filename)
	}
}

// archiveFile copies the file into the archive and removes it from the
// inbox.
func (ip *inboxProcessor) archiveFile(ctx context.Context, supplierKey, filename, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	_, err = ip.archive.Archive(ctx, supplierKey, filename, f)
	f.Close()
	if err != nil {
		return err
	}

	return os.Remove(path)
}
