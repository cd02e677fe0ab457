package issues

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/YOKE-Gaming/linear-release-action/core/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	states    []utils.WorkflowState
	issues    []utils.Issue
	queryErr  error
	failState map[string]error
	failLabel map[string]error

	gotLabel, gotState string
	updated            []string
	labelled           []string
}

func (f *fakeTracker) WorkflowStates(_ context.Context, name string) ([]utils.WorkflowState, error) {
	var out []utils.WorkflowState
	for _, s := range f.states {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeTracker) Issues(_ context.Context, labelName, stateName string) ([]utils.Issue, error) {
	f.gotLabel, f.gotState = labelName, stateName
	return f.issues, f.queryErr
}

func (f *fakeTracker) UpdateIssueState(_ context.Context, issueID, _ string) error {
	if err := f.failState[issueID]; err != nil {
		return err
	}
	f.updated = append(f.updated, issueID)
	return nil
}

func (f *fakeTracker) AddIssueLabel(_ context.Context, issueID, _ string) error {
	if err := f.failLabel[issueID]; err != nil {
		return err
	}
	f.labelled = append(f.labelled, issueID)
	return nil
}

func sampleIssues(n int) []utils.Issue {
	out := make([]utils.Issue, n)
	for i := range out {
		id := string(rune('a' + i))
		out[i] = utils.Issue{ID: id, Identifier: "MOB-" + string(rune('1'+i)), Title: "Issue " + id}
	}
	return out
}

var versionLabel = &utils.IssueLabel{ID: "L1", Name: "mobile - 2.3.0"}

func TestUpdate_AllSucceed(t *testing.T) {
	t.Parallel()
	tracker := &fakeTracker{issues: sampleIssues(3)}
	u := &Updater{Tracker: tracker, BreakerThreshold: DefaultBreakerThreshold}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.NoError(t, err)
	assert.Equal(t, "mobile", tracker.gotLabel)
	assert.Equal(t, DefaultReadyState, tracker.gotState)
	assert.Equal(t, []string{"a", "b", "c"}, tracker.updated)
	assert.Equal(t, []string{"a", "b", "c"}, tracker.labelled)
	assert.Len(t, batch.Updated(), 3)
	assert.Empty(t, batch.Failed())
	assert.NoError(t, batch.Err())
}

func TestUpdate_OneFailureIsRecordedAndSkipped(t *testing.T) {
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	defer slog.SetDefault(old)

	tracker := &fakeTracker{
		issues:    sampleIssues(4),
		failState: map[string]error{"b": errors.New("boom")},
	}
	u := &Updater{Tracker: tracker, BreakerThreshold: DefaultBreakerThreshold}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.NoError(t, err)

	// Every queried issue stays in the batch, in query order.
	require.Len(t, batch.Issues(), 4)
	assert.Equal(t, []string{"MOB-1", "MOB-2", "MOB-3", "MOB-4"}, identifiers(batch.Issues()))
	assert.Equal(t, []string{"a", "c", "d"}, tracker.updated)
	assert.Equal(t, []string{"a", "c", "d"}, tracker.labelled)

	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "MOB-2", failed[0].Issue.Identifier)
	require.Error(t, batch.Err())
	assert.Contains(t, batch.Err().Error(), "issue MOB-2: boom")

	var issueWarnings int
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "level=WARN") && strings.Contains(line, "issue=MOB-2") {
			issueWarnings++
		}
	}
	assert.Equal(t, 1, issueWarnings)
}

func TestUpdate_LabelFailureKeepsStateChange(t *testing.T) {
	t.Parallel()
	tracker := &fakeTracker{
		issues:    sampleIssues(2),
		failLabel: map[string]error{"a": errors.New("label rejected")},
	}
	u := &Updater{Tracker: tracker}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tracker.updated, "no rollback of the state change")
	assert.Equal(t, []string{"b"}, tracker.labelled)
	require.Len(t, batch.Failed(), 1)
	assert.Equal(t, "a", batch.Failed()[0].Issue.ID)
}

func TestUpdate_NoIssues(t *testing.T) {
	t.Parallel()
	t.Run("fail policy", func(t *testing.T) {
		t.Parallel()
		u := &Updater{Tracker: &fakeTracker{}, EmptyPolicy: EmptyFail}
		_, err := u.Update(context.Background(), "mobile", versionLabel, "done")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoIssues))
	})
	t.Run("default policy fails", func(t *testing.T) {
		t.Parallel()
		u := &Updater{Tracker: &fakeTracker{}}
		_, err := u.Update(context.Background(), "mobile", versionLabel, "done")
		assert.True(t, errors.Is(err, ErrNoIssues))
	})
	t.Run("report policy", func(t *testing.T) {
		t.Parallel()
		u := &Updater{Tracker: &fakeTracker{}, EmptyPolicy: EmptyReport}
		batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
		require.NoError(t, err)
		assert.Empty(t, batch.Issues())
		assert.NoError(t, batch.Err())
	})
}

func TestUpdate_QueryFailureIsFatal(t *testing.T) {
	t.Parallel()
	u := &Updater{Tracker: &fakeTracker{queryErr: errors.New("connection refused")}}
	_, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUpdate_ConsecutiveFailuresTripBreaker(t *testing.T) {
	t.Parallel()
	down := errors.New("503 service unavailable")
	tracker := &fakeTracker{
		issues:    sampleIssues(5),
		failState: map[string]error{"a": down, "b": down, "c": down, "d": down, "e": down},
	}
	u := &Updater{Tracker: tracker, BreakerThreshold: 3}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrackerUnavailable))
	assert.True(t, errors.Is(err, down))
	assert.Len(t, batch.Results, 3, "batch stops once the breaker opens")
}

func TestUpdate_TrackerRejectionsDoNotTripBreaker(t *testing.T) {
	t.Parallel()
	rejected := &utils.APIError{Messages: []string{"Entity not found"}}
	tracker := &fakeTracker{
		issues:    sampleIssues(5),
		failState: map[string]error{"a": rejected, "b": rejected, "c": rejected},
	}
	u := &Updater{Tracker: tracker, BreakerThreshold: 3}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.NoError(t, err)
	assert.Len(t, batch.Results, 5)
	assert.Equal(t, []string{"MOB-1", "MOB-2", "MOB-3", "MOB-4", "MOB-5"}, identifiers(batch.Issues()))
	assert.Equal(t, []string{"d", "e"}, tracker.updated)
	assert.Len(t, batch.Failed(), 3)
	assert.Contains(t, batch.Err().Error(), "Entity not found")
}

func TestUpdate_TrackerResponseResetsOutageCount(t *testing.T) {
	t.Parallel()
	down := errors.New("connection reset by peer")
	rejected := &utils.APIError{Messages: []string{"Entity not found"}}
	tracker := &fakeTracker{
		issues:    sampleIssues(5),
		failState: map[string]error{"a": down, "b": down, "c": rejected, "d": down, "e": down},
	}
	u := &Updater{Tracker: tracker, BreakerThreshold: 3}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.NoError(t, err, "a tracker response breaks the run of outages")
	assert.Len(t, batch.Results, 5)
}

func TestUpdate_NonConsecutiveFailuresDoNotTrip(t *testing.T) {
	t.Parallel()
	flaky := errors.New("timeout")
	tracker := &fakeTracker{
		issues:    sampleIssues(5),
		failState: map[string]error{"a": flaky, "b": flaky, "d": flaky, "e": flaky},
	}
	u := &Updater{Tracker: tracker, BreakerThreshold: 3}

	batch, err := u.Update(context.Background(), "mobile", versionLabel, "done")
	require.NoError(t, err)
	assert.Len(t, batch.Results, 5)
	assert.Len(t, batch.Failed(), 4)
}

func TestUpdate_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := &Updater{Tracker: &fakeTracker{issues: sampleIssues(2)}}

	_, err := u.Update(ctx, "mobile", versionLabel, "done")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUpdate_RequiresLabelAndState(t *testing.T) {
	t.Parallel()
	u := &Updater{Tracker: &fakeTracker{issues: sampleIssues(1)}}
	_, err := u.Update(context.Background(), "mobile", nil, "done")
	assert.Error(t, err)
	_, err = u.Update(context.Background(), "mobile", versionLabel, "")
	assert.Error(t, err)
}

func TestDoneStateID(t *testing.T) {
	t.Parallel()
	tracker := &fakeTracker{states: []utils.WorkflowState{
		{ID: "s-done", Name: "Done"},
		{ID: "s-shipped", Name: "Shipped"},
	}}

	id, err := (&Updater{Tracker: tracker}).DoneStateID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-done", id)

	id, err = (&Updater{Tracker: tracker, DoneState: "Shipped"}).DoneStateID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-shipped", id)

	_, err = (&Updater{Tracker: tracker, DoneState: "Released"}).DoneStateID(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDoneStateNotFound))
}

func identifiers(issues []utils.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Identifier
	}
	return out
}
