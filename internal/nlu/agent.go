package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// Category classifies an incoming request.
type Category string

const (
	CategoryTelecom    Category = "TELECOM"
	CategoryGreeting   Category = "GREETING"
	CategoryOutOfScope Category = "OUT_OF_SCOPE"
)

// RouteResult is the outcome of classifying a request.
type RouteResult struct {
	Category Category `json:"type"`
	Message  string   `json:"message"`
}

// Agent runs the language-understanding operations of the workflow over a
// single LLM collaborator.
type Agent struct {
	client LLMClient
}

// NewAgent creates an Agent backed by the given client.
func NewAgent(client LLMClient) *Agent {
	return &Agent{client: client}
}

const classifySystemPrompt = `You are a classification agent for a 5G telecom service system.

TASK: Understand the user request and classify it into 3 categories:
1. "TELECOM": request about telecom/network/5G/cloud/IoT services
2. "GREETING": simple greeting (hello, hi, how are you, etc.)
3. "OUT_OF_SCOPE": off topic (cooking, sports, politics, writing code, etc.)

RULES:
- Answer ONLY with: "TELECOM", "GREETING" or "OUT_OF_SCOPE"
- NOTHING else, just the keyword
- If unsure between TELECOM and OUT_OF_SCOPE, prefer OUT_OF_SCOPE`

const politeSystemPrompt = `You are a polite and professional assistant.

TASK: Generate an appropriate response for the given context.

RULES:
- For greetings: warm response, offer help with telecom services
- For off-topic requests: apologize politely, restate your domain (telecom/5G/cloud)
- Professional but friendly tone
- Short response (2-3 sentences max)`

const decomposeSystemPrompt = `You are a 5G telecom expert specialized in requirements analysis.

TASK: Identify ALL services AND attach to EACH service ITS specific properties.

CRITICAL RULE - PROPERTIES PER SERVICE:
- EACH service has its own "properties" object
- Only include properties DIRECTLY tied to THAT service
- NEVER build a global "properties" object
- Do not extract properties the user gave no value for
- Slice type, use case, usage and similar labels do not belong in "properties"

SERVICE RULES:
- Identify ALL services, mentioned or IMPLIED
- One service per distinct function
- Common types:
  * 5G slices: uRLLC (latency), eMBB (throughput), mMTC (IoT)
  * Analytics: video, IoT data, detection
  * Notification: SMS, email, push, alerts
  * Edge computing: local processing
  * Storage: cloud, edge storage
  * Security: VPN, firewall, authentication

PROPERTY TO SERVICE MAPPING:
- Latency, throughput, availability -> the relevant 5G slice
- Geographic zone, camera count -> the analytics/processing service
- Recipient, frequency -> the notification service
- Storage capacity -> the storage service

OUTPUT: a single JSON object, no prose:
{"services_identified": [{"name": "...", "rationale": "...", "properties": {"latency": "5ms"}}]}

Property values may be strings ("5ms", "100Mbps"), numbers, or objects with
"min"/"max"/"unit" for ranges and bounds.

IMPORTANT:
- Do NOT duplicate services
- Do NOT invent properties absent from the request
- Attach each property to the most relevant service`

const reformulateSystemPrompt = `Assistant for clarifying user requests.

TASK: Ask ONE focused question ONLY about the refused services.

CRITICAL RULES:
- Focus ONLY on the refused services
- Do NOT mention already validated services
- Short, precise question
- Focus on ONE aspect to clarify
- Concrete examples when relevant
- Professional tone

IMPORTANT: The user already validated some services. Your question must address
ONLY the services they refused, to understand why and to propose alternatives.`

const alternativesSystemPrompt = `Advisor proposing COMPLEMENTARY alternative services.

TASK: Propose 2-3 alternative services that replace the refused ones.

CRITICAL RULES:
- Check the ALREADY VALIDATED services to avoid duplicates
- Propose alternatives that COMPLEMENT the validated services
- Do NOT propose services redundant with validated ones
- Use the history to understand the constraints
- Realistic trade-offs
- Output: a JSON array of precise technical service names, nothing else

IMPORTANT: If the user already validated a 5G slice, do not propose another slice.
If a notification service is validated, do not propose a similar notification service.`

// Classify routes a request into telecom processing, a greeting reply, or an
// out-of-scope reply.
func (a *Agent) Classify(ctx context.Context, request string) (RouteResult, error) {
	timer := logging.StartTimer(logging.CategoryNLU, "Agent.Classify")
	defer timer.Stop()

	raw, err := a.client.CompleteWithSystem(ctx, classifySystemPrompt, request)
	if err != nil {
		return RouteResult{}, fmt.Errorf("nlu: classify: %w", err)
	}

	category := Category(strings.ToUpper(strings.TrimSpace(raw)))
	logging.NLUDebug("classified %q as %s", request, category)

	switch category {
	case CategoryGreeting:
		msg, err := a.client.CompleteWithSystem(ctx, politeSystemPrompt,
			fmt.Sprintf("Respond to this greeting: %q. Offer your help with 5G/cloud telecom services.", request))
		if err != nil {
			return RouteResult{}, fmt.Errorf("nlu: greeting response: %w", err)
		}
		return RouteResult{Category: CategoryGreeting, Message: msg}, nil
	case CategoryOutOfScope:
		msg, err := a.client.CompleteWithSystem(ctx, politeSystemPrompt,
			fmt.Sprintf("Politely explain that you cannot help with: %q. Restate your expertise (telecom/5G/cloud).", request))
		if err != nil {
			return RouteResult{}, fmt.Errorf("nlu: out-of-scope response: %w", err)
		}
		return RouteResult{Category: CategoryOutOfScope, Message: msg}, nil
	default:
		return RouteResult{
			Category: CategoryTelecom,
			Message:  "Telecom request identified. Analysis in progress...",
		}, nil
	}
}

// Decompose breaks a telecom request into identified services with their
// per-service properties.
func (a *Agent) Decompose(ctx context.Context, request string) (types.Decomposition, error) {
	timer := logging.StartTimer(logging.CategoryNLU, "Agent.Decompose")
	defer timer.Stop()

	raw, err := a.client.CompleteWithSystem(ctx, decomposeSystemPrompt, request)
	if err != nil {
		return types.Decomposition{}, fmt.Errorf("nlu: decompose: %w", err)
	}

	obj := extractJSONObject(raw)
	if obj == "" {
		return types.Decomposition{}, fmt.Errorf("nlu: no JSON object in decomposition response")
	}

	decomp, err := types.DecodeDecomposition([]byte(obj))
	if err != nil {
		return types.Decomposition{}, fmt.Errorf("nlu: parse decomposition: %w", err)
	}

	logging.NLU("decomposed request into %d services", len(decomp.Services))
	return decomp, nil
}

// Clarify re-runs decomposition over a user clarification, steering the model
// away from already validated services. The caller still filters the result
// against the validated set; the prompt alone is not trusted to exclude them.
func (a *Agent) Clarify(ctx context.Context, clarification string, validated, refused []string, originalRequest string) (types.Decomposition, error) {
	timer := logging.StartTimer(logging.CategoryNLU, "Agent.Clarify")
	defer timer.Stop()

	targeted := fmt.Sprintf(`CONTEXT:
The user already VALIDATED these services (do NOT propose them again):
%s

REFUSED services to improve:
%s

ORIGINAL REQUEST:
%s

USER CLARIFICATION:
%s

TASK:
Propose ONLY alternative or improved services for the refused ones.
Do NOT propose the already validated services: %s`,
		strings.Join(validated, ", "),
		strings.Join(refused, ", "),
		originalRequest,
		clarification,
		strings.Join(validated, ", "))

	return a.Decompose(ctx, targeted)
}

// Reformulate asks one targeted question about the refused services.
func (a *Agent) Reformulate(ctx context.Context, refused, validated, history []string) (string, error) {
	timer := logging.StartTimer(logging.CategoryNLU, "Agent.Reformulate")
	defer timer.Stop()

	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	prompt := fmt.Sprintf(`ALREADY VALIDATED services (do not mention): %s

REFUSED services (to clarify): %s

History:
%s

Ask ONE question ONLY about the refused services, to understand why the user
rejected them and be able to propose alternatives.`,
		strings.Join(validated, ", "),
		strings.Join(refused, ", "),
		strings.Join(recent, "\n"))

	question, err := a.client.CompleteWithSystem(ctx, reformulateSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("nlu: reformulate: %w", err)
	}
	return question, nil
}

// RecommendAlternatives proposes replacement services for the refused ones,
// complementary to what is already validated.
func (a *Agent) RecommendAlternatives(ctx context.Context, refused, validated, history []string) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryNLU, "Agent.RecommendAlternatives")
	defer timer.Stop()

	prompt := fmt.Sprintf(`ALREADY VALIDATED services (do not propose similar ones):
%s

REFUSED services (to replace):
%s

History:
%s

Propose 2-3 alternative services that:
1. Replace the refused services
2. COMPLEMENT the validated services
3. Do NOT duplicate functionality already covered`,
		strings.Join(validated, ", "),
		strings.Join(refused, ", "),
		strings.Join(history, "\n"))

	raw, err := a.client.CompleteWithSystem(ctx, alternativesSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("nlu: recommend alternatives: %w", err)
	}

	arr := extractJSONArray(raw)
	if arr == "" {
		return nil, fmt.Errorf("nlu: no JSON array in alternatives response")
	}

	var alternatives []string
	if err := json.Unmarshal([]byte(arr), &alternatives); err != nil {
		return nil, fmt.Errorf("nlu: parse alternatives: %w", err)
	}

	logging.NLUDebug("recommended %d alternatives", len(alternatives))
	return alternatives, nil
}
