package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"research-agent-be/internal/constant"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/retrieval/lexical"

	"github.com/tidwall/gjson"
)

type Route string

const (
	RouteConversational   Route = "conversational"
	RouteDocumentGrounded Route = "document-grounded"
	RouteGeneralKnowledge Route = "general-knowledge"
)

// Mode selects how much the router relies on the model
type Mode string

const (
	ModeRules  Mode = "rules"
	ModeLLM    Mode = "llm"
	ModeHybrid Mode = "hybrid"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRules, ModeLLM, ModeHybrid:
		return m, nil
	case "":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("unknown classifier mode: %s", s)
	}
}

// Decision is recomputed for every question and never stored
type Decision struct {
	Route Route
	// DocumentSeeking is set when the question asks for research knowledge,
	// whether or not a corpus is loaded.
	DocumentSeeking bool
	Reason          string
	ByModel         bool
}

var (
	memoryPatterns = compile(
		`\b(previous|last|earlier|prior|first|second|latest) (question|questions|message|messages|answer|answers|query|queries)\b`,
		`\bwhat (did|have|was it) (i|we) (just )?(ask|asked|say|said|discuss|discussed|talk about|mention|mentioned)\b`,
		`\bhow many (questions|messages|times|queries)\b`,
		`\b(our|this) (conversation|chat)( history| so far)?\b`,
		`\bour discussion\b`,
		`\bconversation history\b`,
		`\b(you|we) (said|told me|mentioned|answered) (before|earlier|previously)\b`,
		`\b(list|show|repeat|summari[sz]e) (all |my |the )?(questions|messages|conversation)\b`,
		`\bremind me what\b`,
	)
	smalltalkPatterns = compile(
		`^(hi|hello|hey|good (morning|afternoon|evening)|thanks|thank you|ok|okay|bye|goodbye)\b[\s!.,]*$`,
		`\bwho are you\b`,
		`\bwhat can you do\b`,
		`\bwhat are your (capabilities|abilities)\b`,
		`\bhow are you\b`,
	)
	researchTerms = []string{
		"llm", "llms", "language model", "paper", "papers", "study", "studies", "research", "neural",
		"transformer", "deep learning", "machine learning", "nlp", "benchmark", "dataset", "method",
		"approach", "finding", "findings", "result", "results", "experiment", "training", "fine-tun",
		"retrieval", "embedding", "architecture", "algorithm", "evaluation", "accuracy", "author",
		"authors", "document", "documents", "model", "models", "debug", "prompting", "reasoning",
		"state-of-the-art", "sota", "according to",
	}
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// IsMemoryQuestion reports whether the question is about the conversation itself
func IsMemoryQuestion(question string) bool {
	return matchesAny(memoryPatterns, question)
}

// IsSmallTalk reports greetings and questions about the assistant
func IsSmallTalk(question string) bool {
	return matchesAny(smalltalkPatterns, strings.TrimSpace(question))
}

// IsResearchQuestion reports whether the question reads as a request for
// research or document knowledge.
func IsResearchQuestion(question string) bool {
	lower := strings.ToLower(question)
	tokens := lexical.Terms(question)
	for _, term := range researchTerms {
		if strings.ContainsAny(term, " -") {
			if strings.Contains(lower, term) {
				return true
			}
			continue
		}
		if _, ok := tokens[term]; ok {
			return true
		}
	}
	return false
}

// Router chooses the answering path for a question
type Router struct {
	llmProvider llm.LLMProvider
	mode        Mode
	logger      logger.ILogger
}

func NewRouter(llmProvider llm.LLMProvider, mode Mode, log logger.ILogger) *Router {
	if llmProvider == nil {
		mode = ModeRules
	}
	return &Router{llmProvider: llmProvider, mode: mode, logger: log}
}

// Classify never fails: when the model cannot be reached the rules decide.
// Rules mode never calls the model; hybrid mode asks it only about questions
// the patterns leave open; llm mode asks it first about everything.
func (r *Router) Classify(ctx context.Context, question string, hasCorpus bool) Decision {
	if r.mode == ModeLLM {
		d, err := r.classifyWithModel(ctx, question)
		if err == nil {
			return constrain(d, hasCorpus)
		}
		r.logger.Warn("Router", "Model classification failed, using rules", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if IsMemoryQuestion(question) {
		return Decision{Route: RouteConversational, Reason: "question refers to the conversation"}
	}
	if IsSmallTalk(question) {
		return Decision{Route: RouteGeneralKnowledge, Reason: "small talk"}
	}

	seeking := IsResearchQuestion(question)
	if !hasCorpus {
		return Decision{Route: RouteGeneralKnowledge, DocumentSeeking: seeking, Reason: "no documents indexed"}
	}

	if r.mode == ModeHybrid {
		d, err := r.classifyWithModel(ctx, question)
		if err == nil {
			return d
		}
		r.logger.Warn("Router", "Model classification failed, using rules", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// With a corpus loaded, grounding is attempted first; grading filters misses
	return Decision{Route: RouteDocumentGrounded, DocumentSeeking: seeking, Reason: "documents available"}
}

// constrain keeps a model decision within what the current corpus allows
func constrain(d Decision, hasCorpus bool) Decision {
	if d.Route == RouteDocumentGrounded && !hasCorpus {
		d.Route = RouteGeneralKnowledge
		d.DocumentSeeking = true
	}
	return d
}

func (r *Router) classifyWithModel(ctx context.Context, question string) (Decision, error) {
	reply, err := r.llmProvider.Generate(ctx, fmt.Sprintf(constant.RouterPrompt, question), llm.WithTemperature(0))
	if err != nil {
		return Decision{}, err
	}

	route, reason := parseRouteReply(reply)
	switch route {
	case "memory":
		return Decision{Route: RouteConversational, Reason: reason, ByModel: true}, nil
	case "vectorstore":
		return Decision{Route: RouteDocumentGrounded, DocumentSeeking: true, Reason: reason, ByModel: true}, nil
	case "general":
		return Decision{Route: RouteGeneralKnowledge, Reason: reason, ByModel: true}, nil
	default:
		return Decision{}, fmt.Errorf("unrecognized route in reply: %q", truncate(reply, 120))
	}
}

// parseRouteReply reads {"route": ...} or falls back to the first handler name mentioned
func parseRouteReply(reply string) (string, string) {
	if raw := extractJSON(reply); raw != "" {
		route := strings.ToLower(gjson.Get(raw, "route").String())
		if route != "" {
			return route, gjson.Get(raw, "reason").String()
		}
	}
	lower := strings.ToLower(reply)
	best, bestIdx := "", -1
	for _, name := range []string{"memory", "vectorstore", "general"} {
		if idx := strings.Index(lower, name); idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = name, idx
		}
	}
	return best, ""
}

// extractJSON returns the first {...} object in s when it is valid JSON
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	raw := s[start : end+1]
	if !gjson.Valid(raw) {
		return ""
	}
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
