package screening

import "github.com/kailas-cloud/screener/internal/domain/catalog"

// Phase names a pipeline stage recorded in Result.PhasesApplied.
type Phase string

// Phases in execution order.
const (
	PhaseConstraintCompiler Phase = "constraint_compiler"
	PhaseProximityFilter    Phase = "proximity_filter"
	PhaseSemanticExclusion  Phase = "semantic_exclusion"
	PhaseSemanticRanker     Phase = "semantic_ranker"
)

// MessageNoFeasible is set when no item survives the hard constraints.
const MessageNoFeasible = "no feasible products found"

// Product is one ranked entry of the screening result.
type Product struct {
	ProductID string  `json:"productId"`
	OptionID  string  `json:"optionId"`
	UnitID    string  `json:"unitId"`
	Score     float64 `json:"score"`
}

// Identity returns the catalog identity of the product.
func (p Product) Identity() catalog.Identity {
	return catalog.Identity{ProductID: p.ProductID, OptionID: p.OptionID, UnitID: p.UnitID}
}

// Stats records the candidate count after each filtering phase.
type Stats struct {
	Initial        int `json:"initial"`
	AfterCompile   int `json:"after_compile"`
	AfterProximity int `json:"after_proximity"`
	AfterExclusion int `json:"after_exclusion"`
}

// Result is the outcome of one screening call.
type Result struct {
	Products      []Product `json:"products"`
	Message       *string   `json:"message"`
	PhasesApplied []Phase   `json:"phasesApplied"`
	Notes         []string  `json:"notes,omitempty"`
	Stats         *Stats    `json:"stats,omitempty"`
}

// NewResult returns a Result with non-nil slices.
func NewResult() *Result {
	return &Result{Products: []Product{}, PhasesApplied: []Phase{}}
}

// Apply appends a phase to the trace.
func (r *Result) Apply(p Phase) { r.PhasesApplied = append(r.PhasesApplied, p) }

// Note appends a human-readable degradation note.
func (r *Result) Note(n string) { r.Notes = append(r.Notes, n) }

// Infeasible marks the result as empty with the standard message.
func (r *Result) Infeasible() {
	msg := MessageNoFeasible
	r.Products = []Product{}
	r.Message = &msg
}
