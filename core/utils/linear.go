package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// linearBaseURL can be overridden in tests to point at a httptest server.
var linearBaseURL string

const linearPageSize = 50

// ErrConflict reports that the tracker rejected a create because the entity already exists.
var ErrConflict = errors.New("entity already exists")

const issueLabelFields = `id
      name
      color
      team { id }
      parent { id }`

const issueLabelsQuery = `query($filter: IssueLabelFilter, $first: Int) {
  issueLabels(filter: $filter, first: $first) {
    nodes {
      ` + issueLabelFields + `
    }
  }
}`

const createIssueLabelMutation = `mutation($input: IssueLabelCreateInput!) {
  issueLabelCreate(input: $input) {
    success
    issueLabel {
      ` + issueLabelFields + `
    }
  }
}`

const workflowStatesQuery = `query($filter: WorkflowStateFilter, $first: Int) {
  workflowStates(filter: $filter, first: $first) {
    nodes {
      id
      name
      team { id }
    }
  }
}`

const issuesQuery = `query($filter: IssueFilter, $first: Int) {
  issues(filter: $filter, first: $first) {
    nodes {
      id
      identifier
      title
      url
      state { id }
      labels { nodes { id name } }
    }
  }
}`

const updateIssueMutation = `mutation($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    success
  }
}`

const addIssueLabelMutation = `mutation($id: String!, $labelId: String!) {
  issueAddLabel(id: $id, labelId: $labelId) {
    success
  }
}`

const issueDetailsQuery = `query($id: String!) {
  issue(id: $id) {
    assignee { name }
    attachments { nodes { url sourceType } }
  }
}`

type linearGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type linearGraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []linearGQLErr  `json:"errors"`
}

type linearGQLErr struct {
	Message    string            `json:"message"`
	Extensions linearGQLErrExtra `json:"extensions"`
}

type linearGQLErrExtra struct {
	Code                   string `json:"code"`
	Type                   string `json:"type"`
	UserPresentableMessage string `json:"userPresentableMessage"`
}

type linearID struct {
	ID string `json:"id"`
}

type linearName struct {
	Name string `json:"name"`
}

type linearLabel struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Team   *linearID `json:"team"`
	Parent *linearID `json:"parent"`
}

type linearIssue struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	State      *linearID `json:"state"`
	Labels     struct {
		Nodes []linearLabel `json:"nodes"`
	} `json:"labels"`
}

type linearAttachment struct {
	URL        string `json:"url"`
	SourceType string `json:"sourceType"`
}

type linearMutationResult struct {
	Success bool `json:"success"`
}

// APIError carries the GraphQL errors returned by Linear.
// errors.Is(err, ErrConflict) holds when any of them reports a duplicate entity.
type APIError struct {
	Messages []string
	Conflict bool
}

func (e *APIError) Error() string {
	return "linear API returned errors: " + strings.Join(e.Messages, "; ")
}

func (e *APIError) Is(target error) bool {
	return target == ErrConflict && e.Conflict
}

func newAPIError(errs []linearGQLErr) *APIError {
	apiErr := &APIError{Messages: make([]string, len(errs))}
	for i, e := range errs {
		msg := e.Message
		if e.Extensions.UserPresentableMessage != "" && e.Extensions.UserPresentableMessage != msg {
			msg = msg + " (" + e.Extensions.UserPresentableMessage + ")"
		}
		apiErr.Messages[i] = msg
		if e.isConflict() {
			apiErr.Conflict = true
		}
	}
	return apiErr
}

// conflictCodes are extension codes and types Linear uses for uniqueness violations.
var conflictCodes = map[string]bool{
	"conflict":         true,
	"already_exists":   true,
	"duplicate_entity": true,
	"unique_violation": true,
}

// isConflict reports whether e rejects a create because the entity exists.
// The extension code or type decides; the message is the fallback since
// Linear reports some duplicates as plain INVALID_INPUT.
func (e linearGQLErr) isConflict() bool {
	for _, c := range []string{e.Extensions.Code, e.Extensions.Type} {
		if conflictCodes[strings.ToLower(strings.ReplaceAll(strings.TrimSpace(c), " ", "_"))] {
			return true
		}
	}
	for _, msg := range []string{e.Message, e.Extensions.UserPresentableMessage} {
		if strings.Contains(strings.ToLower(msg), "already exists") {
			return true
		}
	}
	return false
}

// Linear talks to the Linear GraphQL API with a personal API key.
type Linear struct {
	Token      string
	HTTPClient *http.Client
}

// NewLinear returns a client authenticated with the given API key.
func NewLinear(token string) *Linear {
	return &Linear{Token: token}
}

// query executes one GraphQL request and decodes its data payload into out.
func (l *Linear) query(ctx context.Context, query string, variables map[string]any, out any) error {
	if l.Token == "" {
		return fmt.Errorf("linear API requires authentication: set the linearApiKey input")
	}

	baseURL := linearBaseURL
	if baseURL == "" {
		baseURL = "https://api.linear.app/graphql"
	}

	body, err := json.Marshal(linearGraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal linear request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create linear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", l.Token)

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach linear: %w", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read linear response: %w", err)
	}

	var gqlResp linearGraphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("linear API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("failed to parse linear response: %w", err)
	}

	// Linear answers user errors with status 400 and a regular errors array.
	if len(gqlResp.Errors) > 0 {
		return newAPIError(gqlResp.Errors)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linear API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return fmt.Errorf("linear API returned no data")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("failed to parse linear data: %w", err)
	}
	return nil
}

// IssueLabels returns the first page of labels matching filter.
func (l *Linear) IssueLabels(ctx context.Context, filter LabelFilter) ([]IssueLabel, error) {
	slog.Debug("Querying Linear labels", "names", filter.Names, "team", filter.TeamID, "parent", filter.ParentID)

	var data struct {
		IssueLabels struct {
			Nodes []linearLabel `json:"nodes"`
		} `json:"issueLabels"`
	}
	vars := map[string]any{"filter": buildLabelFilter(filter), "first": linearPageSize}
	if err := l.query(ctx, issueLabelsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}

	labels := make([]IssueLabel, 0, len(data.IssueLabels.Nodes))
	for _, n := range data.IssueLabels.Nodes {
		labels = append(labels, n.toLabel())
	}
	return labels, nil
}

// CreateIssueLabel creates a label. A duplicate name under the same parent yields ErrConflict.
func (l *Linear) CreateIssueLabel(ctx context.Context, input LabelInput) (*IssueLabel, error) {
	slog.Debug("Creating Linear label", "name", input.Name, "team", input.TeamID, "parent", input.ParentID)

	in := map[string]any{"name": input.Name}
	if input.Color != "" {
		in["color"] = input.Color
	}
	if input.TeamID != "" {
		in["teamId"] = input.TeamID
	}
	if input.ParentID != "" {
		in["parentId"] = input.ParentID
	}

	var data struct {
		IssueLabelCreate struct {
			Success    bool         `json:"success"`
			IssueLabel *linearLabel `json:"issueLabel"`
		} `json:"issueLabelCreate"`
	}
	if err := l.query(ctx, createIssueLabelMutation, map[string]any{"input": in}, &data); err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", input.Name, err)
	}
	if !data.IssueLabelCreate.Success || data.IssueLabelCreate.IssueLabel == nil {
		return nil, fmt.Errorf("failed to create label %q: linear reported no label", input.Name)
	}
	label := data.IssueLabelCreate.IssueLabel.toLabel()
	return &label, nil
}

// WorkflowStates returns the first page of workflow states with the given name.
func (l *Linear) WorkflowStates(ctx context.Context, name string) ([]WorkflowState, error) {
	var data struct {
		WorkflowStates struct {
			Nodes []struct {
				ID   string    `json:"id"`
				Name string    `json:"name"`
				Team *linearID `json:"team"`
			} `json:"nodes"`
		} `json:"workflowStates"`
	}
	vars := map[string]any{
		"filter": map[string]any{"name": map[string]any{"eq": name}},
		"first":  linearPageSize,
	}
	if err := l.query(ctx, workflowStatesQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("failed to query workflow states: %w", err)
	}

	states := make([]WorkflowState, 0, len(data.WorkflowStates.Nodes))
	for _, n := range data.WorkflowStates.Nodes {
		s := WorkflowState{ID: n.ID, Name: n.Name}
		if n.Team != nil {
			s.TeamID = n.Team.ID
		}
		states = append(states, s)
	}
	return states, nil
}

// Issues returns the first page of issues carrying labelName and sitting in stateName.
func (l *Linear) Issues(ctx context.Context, labelName, stateName string) ([]Issue, error) {
	slog.Debug("Fetching Linear issues", "label", labelName, "state", stateName)

	var data struct {
		Issues struct {
			Nodes []linearIssue `json:"nodes"`
		} `json:"issues"`
	}
	vars := map[string]any{"filter": buildIssueFilter(labelName, stateName), "first": linearPageSize}
	if err := l.query(ctx, issuesQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}

	issues := make([]Issue, 0, len(data.Issues.Nodes))
	for _, n := range data.Issues.Nodes {
		issue := Issue{
			ID:         n.ID,
			Identifier: n.Identifier,
			Title:      n.Title,
			URL:        n.URL,
		}
		if n.State != nil {
			issue.StateID = n.State.ID
		}
		for _, lbl := range n.Labels.Nodes {
			issue.Labels = append(issue.Labels, lbl.Name)
		}
		issues = append(issues, issue)
	}
	slog.Debug("Linear issues fetched", "count", len(issues))
	return issues, nil
}

// UpdateIssueState moves an issue to the workflow state stateID.
func (l *Linear) UpdateIssueState(ctx context.Context, issueID, stateID string) error {
	var data struct {
		IssueUpdate linearMutationResult `json:"issueUpdate"`
	}
	vars := map[string]any{"id": issueID, "input": map[string]any{"stateId": stateID}}
	if err := l.query(ctx, updateIssueMutation, vars, &data); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", issueID, err)
	}
	if !data.IssueUpdate.Success {
		return fmt.Errorf("failed to update issue %s: linear reported failure", issueID)
	}
	return nil
}

// AddIssueLabel attaches labelID to an issue.
func (l *Linear) AddIssueLabel(ctx context.Context, issueID, labelID string) error {
	var data struct {
		IssueAddLabel linearMutationResult `json:"issueAddLabel"`
	}
	if err := l.query(ctx, addIssueLabelMutation, map[string]any{"id": issueID, "labelId": labelID}, &data); err != nil {
		return fmt.Errorf("failed to add label to issue %s: %w", issueID, err)
	}
	if !data.IssueAddLabel.Success {
		return fmt.Errorf("failed to add label to issue %s: linear reported failure", issueID)
	}
	return nil
}

// IssueDetails loads the assignee and attachments of one issue.
func (l *Linear) IssueDetails(ctx context.Context, issueID string) (*IssueDetails, error) {
	var data struct {
		Issue *struct {
			Assignee    *linearName `json:"assignee"`
			Attachments struct {
				Nodes []linearAttachment `json:"nodes"`
			} `json:"attachments"`
		} `json:"issue"`
	}
	if err := l.query(ctx, issueDetailsQuery, map[string]any{"id": issueID}, &data); err != nil {
		return nil, fmt.Errorf("failed to load issue %s: %w", issueID, err)
	}
	if data.Issue == nil {
		return nil, fmt.Errorf("issue %s not found", issueID)
	}

	details := &IssueDetails{}
	if data.Issue.Assignee != nil {
		details.Assignee = data.Issue.Assignee.Name
	}
	for _, a := range data.Issue.Attachments.Nodes {
		details.Attachments = append(details.Attachments, Attachment(a))
	}
	return details, nil
}

func (n linearLabel) toLabel() IssueLabel {
	label := IssueLabel{ID: n.ID, Name: n.Name, Color: n.Color}
	if n.Team != nil {
		label.TeamID = n.Team.ID
	}
	if n.Parent != nil {
		label.ParentID = n.Parent.ID
	}
	return label
}

// buildLabelFilter constructs an IssueLabelFilter from exact-match criteria.
func buildLabelFilter(filter LabelFilter) map[string]any {
	f := map[string]any{}
	switch len(filter.Names) {
	case 0:
	case 1:
		f["name"] = map[string]any{"eq": filter.Names[0]}
	default:
		f["name"] = map[string]any{"in": filter.Names}
	}
	if filter.TeamID != "" {
		f["team"] = map[string]any{"id": map[string]any{"eq": filter.TeamID}}
	}
	if filter.ParentID != "" {
		f["parent"] = map[string]any{"id": map[string]any{"eq": filter.ParentID}}
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// buildIssueFilter selects issues by label name and workflow state name.
func buildIssueFilter(labelName, stateName string) map[string]any {
	f := map[string]any{}
	if labelName != "" {
		f["labels"] = map[string]any{"name": map[string]any{"eq": labelName}}
	}
	if stateName != "" {
		f["state"] = map[string]any{"name": map[string]any{"eq": stateName}}
	}
	if len(f) == 0 {
		return nil
	}
	return f
}
