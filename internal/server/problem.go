package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

const problemBase = "https://github.com/HerbHall/mdpanel/problems/"

// Problem types the dashboard answers with.
const (
	ProblemTypeBadRequest  = problemBase + "bad-request"
	ProblemTypeInternal    = problemBase + "internal-error"
	ProblemTypeRateLimited = problemBase + "rate-limited"
)

var problemTypes = map[int]string{
	http.StatusBadRequest:          ProblemTypeBadRequest,
	http.StatusInternalServerError: ProblemTypeInternal,
	http.StatusTooManyRequests:     ProblemTypeRateLimited,
}

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json with p.Status.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// problemFor builds the problem for one of the statuses in problemTypes,
// titled with the standard status text and pointing at the request path.
func problemFor(status int, r *http.Request, detail string) Problem {
	return Problem{
		Type:     problemTypes[status],
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

// BadRequest rejects a malformed action form.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	WriteProblem(w, problemFor(http.StatusBadRequest, r, detail))
}

// InternalError reports a failure rendering or interpreting the page.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	WriteProblem(w, problemFor(http.StatusInternalServerError, r, detail))
}

// RateLimited rejects an action over the limit. A positive retryAfter is
// advertised in whole seconds, rounded up.
func RateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteProblem(w, problemFor(http.StatusTooManyRequests, r, "too many actions, try again shortly"))
}
