package utils

// IssueLabel is a Linear label. Version labels hang under a "Versions - <scope>" parent.
type IssueLabel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// LabelFilter holds exact-match criteria for a label query. Empty fields are ignored.
type LabelFilter struct {
	Names    []string
	TeamID   string
	ParentID string
}

// LabelInput describes a label to create.
type LabelInput struct {
	Name     string
	Color    string
	TeamID   string
	ParentID string
}

// WorkflowState is a Linear workflow state such as "Done".
type WorkflowState struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"teamId,omitempty"`
}

// Issue is the subset of a Linear issue the release flow reads and mutates.
type Issue struct {
	ID         string   `json:"id"`
	Identifier string   `json:"identifier"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	StateID    string   `json:"stateId,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

// Attachment is a link attached to an issue. SourceType "github" marks a pull request.
type Attachment struct {
	URL        string `json:"url"`
	SourceType string `json:"sourceType"`
}

// IssueDetails is loaded lazily per issue when compiling the changelog.
type IssueDetails struct {
	Assignee    string
	Attachments []Attachment
}
