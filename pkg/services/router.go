package services

import "strings"

// Route is where a question is sent.
type Route string

const (
	RouteGeneral Route = "general"
	RouteData    Route = "data"
)

// DefaultGeneralKeywords mark definitional and small-talk questions.
var DefaultGeneralKeywords = []string{
	"what is", "explain", "tell me about", "define", "difference between",
	"how does", "what are", "who is", "why is", "when is", "where is",
	"describe", "meaning of", "tell me a joke", "capital of", "weather",
}

// DefaultDataKeywords mark questions answered from the database.
var DefaultDataKeywords = []string{
	"how many", "count", "total", "shipment", "account", "order",
	"list", "show", "find", "get", "status", "date",
	"origin", "destination", "delayed", "from", "to", "region",
	"average", "sum", "max", "min", "group by", "filter by", "top",
}

// Router picks a Route by substring match on the lowercased question.
// General keywords are checked first; a question matching neither list goes
// to the general model.
type Router struct {
	general []string
	data    []string
}

// NewRouter creates a Router with the default keyword lists.
func NewRouter() *Router {
	return NewRouterWithKeywords(DefaultGeneralKeywords, DefaultDataKeywords)
}

// NewRouterWithKeywords creates a Router with custom keyword lists.
func NewRouterWithKeywords(general, data []string) *Router {
	return &Router{general: lowerAll(general), data: lowerAll(data)}
}

// Route classifies question.
func (r *Router) Route(question string) Route {
	q := strings.ToLower(question)
	if containsAny(q, r.general) {
		return RouteGeneral
	}
	if containsAny(q, r.data) {
		return RouteData
	}
	return RouteGeneral
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
