package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
)

// Catalog supplies the vault context the classifier includes in its prompt.
// Failures are logged and the prompt is built without that context.
type Catalog interface {
	ListProjects() ([]string, error)
	Folders() []string
}

// Router is the single dispatch point for inbound messages. It holds no
// per-message state.
type Router struct {
	classifier   *Classifier
	registry     *agent.Registry
	defaultAgent agent.Agent
	catalog      Catalog
	logger       *slog.Logger
}

// New creates a Router. defaultIntent must be registered.
func New(classifier *Classifier, registry *agent.Registry, defaultIntent string, catalog Catalog, logger *slog.Logger) (*Router, error) {
	def, ok := registry.Lookup(defaultIntent)
	if !ok {
		return nil, fmt.Errorf("router: default intent %q is not registered", defaultIntent)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		classifier:   classifier,
		registry:     registry,
		defaultAgent: def,
		catalog:      catalog,
		logger:       logger,
	}, nil
}

// Route classifies mc and invokes the matching agent, or the default agent
// when classification is unresolved. The handler's result and error are
// returned unchanged.
func (r *Router) Route(ctx context.Context, mc *agent.MessageContext) (*agent.Result, error) {
	if mc.RouterData == nil {
		mc.RouterData = map[string]any{}
	}

	in := Input{
		Text:           mc.RawText,
		History:        mc.History,
		HasAttachments: len(mc.Attachments) > 0,
		Candidates:     r.registry.Descriptors(),
	}
	if r.catalog != nil {
		in.Folders = r.catalog.Folders()
		projects, err := r.catalog.ListProjects()
		if err != nil {
			r.logger.Warn("router: list projects failed", slog.String("error", err.Error()))
		}
		in.Projects = projects
	}

	target := r.defaultAgent
	decision, err := r.classifier.Classify(ctx, in)
	if err != nil {
		r.logClassifyError(err)
	} else if a, ok := r.registry.Lookup(decision.Intent); ok {
		for k, v := range decision.Parameters {
			mc.RouterData[k] = v
		}
		target = a
	}

	r.logger.Info("router: dispatch",
		slog.String("agent", target.Name()),
		slog.Bool("fallback", err != nil))
	return target.Handle(ctx, mc)
}

func (r *Router) logClassifyError(err error) {
	kind := apperr.Kind(err)
	attrs := []any{slog.String("kind", kind), slog.String("error", err.Error())}
	switch kind {
	case "transport":
		r.logger.Warn("router: classification failed", attrs...)
	case "unresolved":
		r.logger.Info("router: classification unresolved", attrs...)
	default:
		r.logger.Error("router: classification failed", attrs...)
	}
}
