package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"go.uber.org/zap"

	"omnisum/internal/models"
)

// Extractor loads staged documents through an eino file loader. PDFs are split
// into one schema.Document per page.
type Extractor struct {
	loader *file.FileLoader
	logger *zap.Logger
}

// New builds an extractor backed by the eino pdf parser.
func New(ctx context.Context, logger *zap.Logger) (*Extractor, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	return NewWithParser(ctx, pdfParser, logger)
}

// NewWithParser routes .pdf files to pdfParser and everything else to plain text.
func NewWithParser(ctx context.Context, pdfParser parser.Parser, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        map[string]parser.Parser{".pdf": pdfParser},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init ext parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{loader: loader, logger: logger}, nil
}

// Extract returns the text of the document at path. With firstPageOnly only
// page one is returned, unmodified; otherwise every non-empty page is joined
// by a blank line. A document without text yields "".
func (e *Extractor) Extract(ctx context.Context, path string, firstPageOnly bool) (string, error) {
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", models.Wrap(models.ErrInputMalformed, fmt.Errorf("load document: %w", err))
	}
	e.logger.Debug("document loaded", zap.String("path", path), zap.Int("pages", len(docs)))
	if firstPageOnly {
		if len(docs) == 0 || docs[0] == nil {
			return "", nil
		}
		return docs[0].Content, nil
	}
	var builder strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(content)
	}
	return builder.String(), nil
}
