// Package document implements the specification-document pipeline: prompt
// assembly, generation through an external completion API with a templated
// degraded mode, and immutable versioned storage of the results.
package document

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"reqspec-backend/internal/config"
	"reqspec-backend/internal/domain"
	"reqspec-backend/internal/service/llm"
)

// FallbackMarker is embedded in every templated document so callers and
// tests can tell a degraded-mode result from a generated one.
const FallbackMarker = "[fallback template: generated without the language-model service]"

const systemPrompt = "You are a professional requirement analyst."

// Generator assembles a prompt from a requirement and its collected content
// and produces a specification document. Generation never fails from the
// caller's point of view: any configuration or API problem yields the
// templated fallback document instead.
type Generator struct {
	provider llm.Provider
	breaker  *gobreaker.CircuitBreaker
	keyValid bool
	logger   *zap.Logger
}

// NewGenerator creates a generator. Credential validity (absent or equal to
// a placeholder sentinel) is decided here once and cached; it is not
// re-checked per call.
func NewGenerator(cfg config.LLMConfig, provider llm.Provider, logger *zap.Logger) *Generator {
	keyValid := cfg.APIKey != "" && !slices.Contains(cfg.PlaceholderKeys, cfg.APIKey)
	if !keyValid {
		logger.Warn("generation credential absent or placeholder, documents will use the built-in template")
	}

	return &Generator{
		provider: provider,
		keyValid: keyValid,
		logger:   logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "llm-completions",
			Timeout: 30 * time.Second,
		}),
	}
}

// Generate produces a document for the requirement. The returned flag
// reports whether the templated fallback was used.
func (g *Generator) Generate(ctx context.Context, req domain.Requirement, contents []domain.ContentSubmission) (string, bool) {
	if !g.keyValid || g.provider == nil || !g.provider.IsAvailable() {
		return g.fallbackDocument(req, contents), true
	}

	prompt := BuildPrompt(req, contents)

	// One attempt, no retries; repeated failures open the breaker and
	// short-circuit straight to the template.
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Complete(ctx, systemPrompt, prompt, llm.CompletionOptions{
			Temperature: 0.7,
			MaxTokens:   2000,
		})
	})
	if err != nil {
		g.logger.Warn("generation call failed, substituting template",
			zap.String("requirement_id", req.ID), zap.Error(err))
		return g.fallbackDocument(req, contents), true
	}

	doc, ok := out.(string)
	if !ok || doc == "" {
		g.logger.Warn("generation returned empty document, substituting template",
			zap.String("requirement_id", req.ID))
		return g.fallbackDocument(req, contents), true
	}
	return doc, false
}

// BuildPrompt deterministically renders the requirement and its collected
// content into the completion prompt. File-backed items are referenced by
// name only, never inlined.
func BuildPrompt(req domain.Requirement, contents []domain.ContentSubmission) string {
	var b strings.Builder

	b.WriteString("Based on the following collected user requirement information, write a complete, professional requirement document.\n\n")
	fmt.Fprintf(&b, "Requirement title: %s\n", req.Title)
	fmt.Fprintf(&b, "Requirement description: %s\n", req.Description)
	b.WriteString("\nCollected raw requirement content:\n")

	for i, c := range contents {
		switch c.ContentType {
		case domain.ContentTypeText, domain.ContentTypeMarkdown:
			fmt.Fprintf(&b, "\n%d. Text content: %s", i+1, c.ContentText)
		case domain.ContentTypeImage:
			fmt.Fprintf(&b, "\n%d. Image content: [image file: %s]", i+1, c.FilePath)
		case domain.ContentTypeAudio:
			fmt.Fprintf(&b, "\n%d. Audio content: [audio file: %s]", i+1, c.FilePath)
		default:
			fmt.Fprintf(&b, "\n%d. Attached file: [file: %s]", i+1, c.FilePath)
		}
	}

	b.WriteString(`

Structure the document as follows:

1. Requirement Overview
   - Background
   - Goals

2. User Scenarios
   - Primary user roles
   - Scenario descriptions

3. Functional Requirements
   - Core feature list
   - Detailed feature descriptions

4. Non-Functional Requirements
   - Performance
   - Security
   - Compatibility

5. Appendix
   - Glossary
   - References

Keep the document professional, complete and clear.
`)

	return b.String()
}

// fallbackDocument synthesizes the deterministic templated document used
// when the completion API is unavailable or misconfigured.
func (g *Generator) fallbackDocument(req domain.Requirement, contents []domain.ContentSubmission) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", req.Title)
	b.WriteString(FallbackMarker + "\n\n")

	b.WriteString("## 1. Requirement Overview\n\n")
	if req.Description != "" {
		b.WriteString(req.Description + "\n\n")
	} else {
		b.WriteString("No description provided.\n\n")
	}

	if len(contents) > 0 {
		b.WriteString("### Collected Content\n\n")
		for i, c := range contents {
			switch c.ContentType {
			case domain.ContentTypeText, domain.ContentTypeMarkdown:
				fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(c.ContentText, 200))
			case domain.ContentTypeImage:
				fmt.Fprintf(&b, "%d. Image: %s\n", i+1, c.FilePath)
			case domain.ContentTypeAudio:
				fmt.Fprintf(&b, "%d. Audio: %s\n", i+1, c.FilePath)
			default:
				fmt.Fprintf(&b, "%d. File: %s\n", i+1, c.FilePath)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## 2. User Scenarios\n\nTo be completed after analysis.\n\n")
	b.WriteString("## 3. Functional Requirements\n\nTo be completed after analysis.\n\n")
	b.WriteString("## 4. Non-Functional Requirements\n\nTo be completed after analysis.\n\n")
	b.WriteString("## 5. Appendix\n\nTo be completed after analysis.\n")

	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
