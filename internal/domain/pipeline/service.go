// Package pipeline wires classification, template matching and extraction
// into one run per document: classify, pick a template, extract with its
// hints, then feed the outcome back into the template and supplier profile.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/soundimports/pricelens/internal/domain/catalog"
	"github.com/soundimports/pricelens/internal/domain/content"
	"github.com/soundimports/pricelens/internal/domain/extraction"
	"github.com/soundimports/pricelens/internal/domain/layout"
	"github.com/soundimports/pricelens/internal/domain/template"
	"github.com/soundimports/pricelens/pkg/metrics"
)

// recognitionBoost is added to a product's confidence when the supplier's
// catalog already knows its name.
const recognitionBoost = 0.05

// ProductCatalog is the known-name index consulted after extraction.
// *catalog.Index satisfies it.
type ProductCatalog interface {
	AddProducts(supplierKey string, products []extraction.ProductCandidate) error
	Recognize(supplierKey, name string) (catalog.Match, bool, error)
}

// Validator inspects one extracted product before it is reported. A non-nil
// error drops the product from the run.
type Validator func(p extraction.ProductCandidate) error

// Report is the outcome of processing one document.
type Report struct {
	SupplierKey string
	Document    string
	Descriptor  layout.Descriptor
	TemplateID  string
	Result      *extraction.Result
	Recognized  int
	Duration    time.Duration
}

// Service runs the ingestion pipeline. Learning and catalog failures are
// logged and skipped: a readable extraction result must survive a broken
// feedback path.
type Service struct {
	classifier *layout.Classifier
	extractor  *extraction.Extractor
	matcher    *template.Matcher
	catalog    ProductCatalog
	validate   Validator
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewService(classifier *layout.Classifier, extractor *extraction.Extractor, matcher *template.Matcher, logger *slog.Logger) *Service {
	return &Service{
		classifier: classifier,
		extractor:  extractor,
		matcher:    matcher,
		logger:     logger,
		tracer:     otel.Tracer("pricelens/pipeline"),
		now:        time.Now,
	}
}

// WithCatalog attaches a known-name index. Optional.
func (s *Service) WithCatalog(c ProductCatalog) *Service {
	s.catalog = c
	return s
}

// WithValidator attaches a per-product validation hook. Optional.
func (s *Service) WithValidator(v Validator) *Service {
	s.validate = v
	return s
}

// Process ingests one document for a supplier: classify the layout, pick
// the best template, extract with its hints, validate, then record the
// outcome against the template and the supplier profile.
func (s *Service) Process(ctx context.Context, supplierKey string, doc *content.Document) (*Report, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}

	ctx, span := s.tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("supplier", supplierKey),
		attribute.String("document", doc.Name),
	))
	defer span.End()

	start := s.now()

	desc := s.classifier.Classify(ctx, doc)
	span.SetAttributes(
		attribute.String("layout.type", string(desc.Type)),
		attribute.Float64("layout.confidence", desc.Confidence),
	)

	tmpl, err := s.matcher.FindBestTemplate(ctx, supplierKey, desc)
	if err != nil {
		span.RecordError(err)
		metrics.RecordRun(supplierKey, "template_error", s.now().Sub(start).Seconds())
		return nil, fmt.Errorf("find template for %q: %w", supplierKey, err)
	}
	span.SetAttributes(attribute.String("template.id", tmpl.ID))

	result, err := s.extractor.Extract(ctx, doc, desc, tmpl.Config.Hints())
	duration := s.now().Sub(start)
	if err != nil {
		span.RecordError(err)
		metrics.RecordRun(supplierKey, "extraction_error", duration.Seconds())
		s.recordOutcome(ctx, supplierKey, tmpl, desc, template.Outcome{
			ProcessingTime: duration,
		})
		return nil, fmt.Errorf("extract %q: %w", doc.Name, err)
	}

	result.Products = s.validated(ctx, supplierKey, result.Products)
	recognized := s.applyCatalog(ctx, supplierKey, result)

	outcome := template.Outcome{
		Score:          result.Confidence / 100,
		Confidence:     meanConfidence(result.Products),
		ProductCount:   len(result.Products),
		ProcessingTime: duration,
		Succeeded:      result.Confidence/100 >= tmpl.Config.ConfidenceThreshold,
		Method:         result.Method,
	}
	s.recordOutcome(ctx, supplierKey, tmpl, desc, outcome)

	status := "failed"
	if outcome.Succeeded {
		status = "succeeded"
	}
	metrics.RecordRun(supplierKey, status, duration.Seconds())
	metrics.RecordExtraction(supplierKey, result.Method, len(result.Products), result.Confidence)

	logAttrs := []any{
		slog.String("supplier", supplierKey),
		slog.String("document", doc.Name),
		slog.String("layout", string(desc.Type)),
		slog.String("template", tmpl.ID),
		slog.String("method", result.Method),
		slog.Int("products", len(result.Products)),
		slog.Float64("confidence", result.Confidence),
		slog.Duration("duration", duration),
	}
	if len(result.Products) > 0 {
		logAttrs = append(logAttrs, slog.String("top_price", result.Products[0].DisplayPrice()))
	}
	s.logger.InfoContext(ctx, "document processed", logAttrs...)

	return &Report{
		SupplierKey: supplierKey,
		Document:    doc.Name,
		Descriptor:  desc,
		TemplateID:  tmpl.ID,
		Result:      result,
		Recognized:  recognized,
		Duration:    duration,
	}, nil
}

// validated filters products through the validation hook, dropping and
// logging rejects.
func (s *Service) validated(ctx context.Context, supplierKey string, products []extraction.ProductCandidate) []extraction.ProductCandidate {
	if s.validate == nil {
		return products
	}
	kept := products[:0]
	for _, p := range products {
		if err := s.validate(p); err != nil {
			s.logger.WarnContext(ctx, "product rejected",
				slog.String("supplier", supplierKey),
				slog.String("product", p.Name),
				slog.Any("error", err),
			)
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// applyCatalog nudges the confidence of products the supplier's catalog
// already knows, then folds the run's products back into the catalog. It
// returns how many products were recognized.
func (s *Service) applyCatalog(ctx context.Context, supplierKey string, result *extraction.Result) int {
	if s.catalog == nil {
		return 0
	}

	recognized := 0
	for i := range result.Products {
		_, found, err := s.catalog.Recognize(supplierKey, result.Products[i].Name)
		if err != nil {
			s.logger.WarnContext(ctx, "catalog lookup failed",
				slog.String("supplier", supplierKey),
				slog.String("product", result.Products[i].Name),
				slog.Any("error", err),
			)
			continue
		}
		if !found {
			continue
		}
		recognized++
		result.Products[i].Confidence += recognitionBoost
		if result.Products[i].Confidence > 1.0 {
			result.Products[i].Confidence = 1.0
		}
	}

	if err := s.catalog.AddProducts(supplierKey, result.Products); err != nil {
		s.logger.WarnContext(ctx, "catalog update failed",
			slog.String("supplier", supplierKey),
			slog.Any("error", err),
		)
	}
	return recognized
}

// recordOutcome feeds a run back into the template and supplier profile.
// Both are best-effort.
func (s *Service) recordOutcome(ctx context.Context, supplierKey string, tmpl *template.Template, desc layout.Descriptor, outcome template.Outcome) {
	if err := s.matcher.UpdateTemplate(ctx, tmpl.ID, outcome); err != nil {
		s.logger.WarnContext(ctx, "template update failed",
			slog.String("template", tmpl.ID),
			slog.Any("error", err),
		)
	}
	if err := s.matcher.UpdateProfile(ctx, supplierKey, tmpl.ID, desc, outcome); err != nil {
		s.logger.WarnContext(ctx, "profile update failed",
			slog.String("supplier", supplierKey),
			slog.Any("error", err),
		)
	}
}

func meanConfidence(products []extraction.ProductCandidate) float64 {
	if len(products) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range products {
		sum += p.Confidence
	}
	return sum / float64(len(products))
}
