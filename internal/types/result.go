package types

// Status is the classified outcome of a check.
type Status string

const (
	// StatusPass means evidence was gathered and the expectation was met.
	StatusPass Status = "PASS"
	// StatusFail means evidence was gathered and the expectation was not met.
	StatusFail Status = "FAIL"
	// StatusError means the check infrastructure broke: no usable evidence,
	// unknown check type or algorithm, or a malformed evidence tree.
	StatusError Status = "ERROR"
)

// Result node type discriminators, as serialized in reports.
const (
	NodeAction = "action_node"
	NodeLogic  = "logic_node"
)

// ResultNode is a classified outcome: an *ActionNode leaf or a *LogicNode aggregate.
type ResultNode interface {
	// OverallStatus returns PASS, FAIL, or ERROR.
	OverallStatus() Status

	// NodeType returns NodeAction or NodeLogic.
	NodeType() string
}

// ActionNode is the outcome of one check.
type ActionNode struct {
	Type    string        `json:"type"`
	Title   string        `json:"title"`
	Status  Status        `json:"overall_status"`
	Details ActionDetails `json:"details"`
}

// ActionDetails explains an ActionNode's status.
type ActionDetails struct {
	// Reason names the algorithm and expected value, or why evaluation could not run.
	Reason string `json:"reason"`

	// Error carries stderr or the executor-reported error.
	Error string `json:"error,omitempty"`

	// Evidence is the raw evidence, kept for audit trails.
	Evidence RawEvidence `json:"evidence,omitempty"`
}

// NewActionNode builds an action node.
func NewActionNode(title string, status Status, details ActionDetails) *ActionNode {
	return &ActionNode{Type: NodeAction, Title: title, Status: status, Details: details}
}

// OverallStatus implements ResultNode.
func (n *ActionNode) OverallStatus() Status { return n.Status }

// NodeType implements ResultNode.
func (n *ActionNode) NodeType() string { return NodeAction }

// LogicNode aggregates child results under AND or OR.
type LogicNode struct {
	Type   string       `json:"type"`
	Logic  Logic        `json:"logic"`
	Status Status       `json:"overall_status"`
	Steps  []ResultNode `json:"steps_results"`
}

// NewLogicNode builds a logic node.
func NewLogicNode(logic Logic, status Status, steps []ResultNode) *LogicNode {
	return &LogicNode{Type: NodeLogic, Logic: logic, Status: status, Steps: steps}
}

// OverallStatus implements ResultNode.
func (n *LogicNode) OverallStatus() Status { return n.Status }

// NodeType implements ResultNode.
func (n *LogicNode) NodeType() string { return NodeLogic }
